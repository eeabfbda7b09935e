package labels_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sacarolha/sacarolha/pkg/labels"
)

func newDiskStore(t *testing.T) *labels.DiskStore {
	t.Helper()
	store, err := labels.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return store
}

func multipartUpload(t *testing.T, wineID, contents string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("wine", wineID); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	fw, err := mw.CreateFormFile("file", "label.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader(contents)); err != nil {
		t.Fatalf("writing file part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/labels", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler_StoresAndReturnsURL(t *testing.T) {
	store := newDiskStore(t)
	handler := labels.UploadHandler(store, 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartUpload(t, "w1", "png-bytes"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["url"] == "" {
		t.Fatalf("response has no url: %v", resp)
	}
}

func TestUploadHandler_MissingWineID(t *testing.T) {
	store := newDiskStore(t)
	handler := labels.UploadHandler(store, 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartUpload(t, "", "png-bytes"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUploadHandler_RejectsNonPost(t *testing.T) {
	store := newDiskStore(t)
	handler := labels.UploadHandler(store, 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestServeHandler_StreamsStoredImage(t *testing.T) {
	store := newDiskStore(t)
	contents := "png-bytes"
	if _, err := store.Put(context.Background(), "w1", "image/png", int64(len(contents)), strings.NewReader(contents)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	handler := labels.ServeHandler(store, func(r *http.Request) string {
		return strings.TrimPrefix(r.URL.Path, "/labels/")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/w1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q, want image/png", ct)
	}
	if rec.Body.String() != contents {
		t.Fatalf("body = %q, want %q", rec.Body.String(), contents)
	}
}

func TestServeHandler_Missing(t *testing.T) {
	store := newDiskStore(t)
	handler := labels.ServeHandler(store, func(r *http.Request) string {
		return strings.TrimPrefix(r.URL.Path, "/labels/")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/labels/ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
