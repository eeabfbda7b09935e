// Package labels stores wine label images, keyed by the wine record
// they belong to. Backends exist for the local filesystem and S3.
package labels

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrNotFound is returned when no label image exists for a wine.
var ErrNotFound = errors.New("labels: image not found")

// ErrTooLarge is returned when an image exceeds the size limit.
var ErrTooLarge = errors.New("labels: image too large")

// DefaultMaxSize bounds uploads when a store is created with no limit.
const DefaultMaxSize = 10 << 20

// Image is a stored label image.
type Image struct {
	// WineID is the owning wine record.
	WineID string

	// ContentType is the image MIME type.
	ContentType string

	// Size is the stored size in bytes.
	Size int64

	// Reader streams the image contents. Callers must close it.
	Reader io.ReadCloser
}

// Close closes the image reader if open.
func (img *Image) Close() error {
	if img.Reader != nil {
		return img.Reader.Close()
	}
	return nil
}

// Store is a label-image backend.
type Store interface {
	// Put stores the image for wineID, replacing any previous one, and
	// returns the URL the record should reference.
	Put(ctx context.Context, wineID, contentType string, size int64, r io.Reader) (url string, err error)

	// Open streams the image for wineID.
	Open(ctx context.Context, wineID string) (*Image, error)

	// Remove deletes the image for wineID. Missing images are fine.
	Remove(ctx context.Context, wineID string) error
}

// UploadHandler returns an http.Handler accepting a multipart form with
// a "file" field and a "wine" field naming the record. It responds with
// JSON {"url": "..."}.
func UploadHandler(store Store, maxSize int64) http.Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Bound the body before parsing.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			http.Error(w, "invalid upload", http.StatusBadRequest)
			return
		}

		wineID := r.FormValue("wine")
		if wineID == "" {
			http.Error(w, "missing wine id", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		url, err := store.Put(r.Context(), wineID, header.Header.Get("Content-Type"), header.Size, file)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "upload failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
	})
}

// ServeHandler returns an http.Handler streaming the image named by the
// final path segment, for mounting at e.g. /labels/{wine}.
func ServeHandler(store Store, wineIDFromRequest func(*http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wineID := wineIDFromRequest(r)
		if wineID == "" {
			http.NotFound(w, r)
			return
		}

		img, err := store.Open(r.Context(), wineID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "image unavailable", http.StatusInternalServerError)
			return
		}
		defer img.Close()

		if img.ContentType != "" {
			w.Header().Set("Content-Type", img.ContentType)
		}
		_, _ = io.Copy(w, img.Reader)
	})
}
