package labels_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sacarolha/sacarolha/pkg/labels"
)

func TestDiskStore_PutAndOpen(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	url, err := store.Put(ctx, "w1", "image/png", 4, bytes.NewReader([]byte("png!")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/labels/w1" {
		t.Errorf("url = %q, want /labels/w1", url)
	}

	img, err := store.Open(ctx, "w1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if img.ContentType != "image/png" || img.Size != 4 {
		t.Errorf("meta = %s/%d", img.ContentType, img.Size)
	}
	data, err := io.ReadAll(img.Reader)
	if err != nil {
		t.Fatalf("reading image: %v", err)
	}
	if string(data) != "png!" {
		t.Errorf("contents = %q", data)
	}
}

func TestDiskStore_PutReplacesPrevious(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "w1", "image/png", 3, bytes.NewReader([]byte("old"))); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := store.Put(ctx, "w1", "image/jpeg", 3, bytes.NewReader([]byte("new"))); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	img, err := store.Open(ctx, "w1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()
	data, _ := io.ReadAll(img.Reader)
	if string(data) != "new" || img.ContentType != "image/jpeg" {
		t.Errorf("got %q/%s, want replacement", data, img.ContentType)
	}
}

func TestDiskStore_RejectsOversizedDeclaredSize(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	_, err = store.Put(context.Background(), "w1", "image/png", 6, bytes.NewReader([]byte("123456")))
	if err != labels.ErrTooLarge {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestDiskStore_RejectsReaderExceedingLimitDespiteSmallerDeclaredSize(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	// size says 4, but the reader provides 6 bytes.
	_, err = store.Put(context.Background(), "w1", "image/png", 4, bytes.NewReader([]byte("123456")))
	if err != labels.ErrTooLarge {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}

	if _, err := store.Open(context.Background(), "w1"); err != labels.ErrNotFound {
		t.Fatalf("Open after rejected put: %v, want ErrNotFound", err)
	}
}

func TestDiskStore_OpenMissing(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if _, err := store.Open(context.Background(), "ghost"); err != labels.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_RemoveIsIdempotent(t *testing.T) {
	store, err := labels.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Put(ctx, "w1", "image/png", 1, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Remove(ctx, "w1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "w1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := store.Open(ctx, "w1"); err != labels.ErrNotFound {
		t.Fatalf("Open after remove: %v, want ErrNotFound", err)
	}
}
