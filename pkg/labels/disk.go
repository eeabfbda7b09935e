package labels

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskStore keeps label images on the local filesystem. Images are
// stored under dir by wine ID with a JSON metadata sidecar.
type DiskStore struct {
	dir     string
	maxSize int64

	mu   sync.RWMutex
	meta map[string]*diskMeta
}

type diskMeta struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// NewDiskStore creates a DiskStore rooted at dir. maxSize of 0 applies
// DefaultMaxSize.
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &DiskStore{
		dir:     dir,
		maxSize: maxSize,
		meta:    make(map[string]*diskMeta),
	}, nil
}

// Put implements Store.
func (s *DiskStore) Put(ctx context.Context, wineID, contentType string, size int64, r io.Reader) (string, error) {
	if size > s.maxSize {
		return "", ErrTooLarge
	}

	path := s.imagePath(wineID)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	// +1 past the limit so an under-declared size is still caught.
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if written > s.maxSize {
		os.Remove(path)
		return "", ErrTooLarge
	}

	meta := &diskMeta{ContentType: contentType, Size: written, StoredAt: time.Now()}
	s.mu.Lock()
	s.meta[wineID] = meta
	s.mu.Unlock()
	s.saveMeta(wineID, meta)

	return "/labels/" + wineID, nil
}

// Open implements Store.
func (s *DiskStore) Open(ctx context.Context, wineID string) (*Image, error) {
	s.mu.RLock()
	meta, ok := s.meta[wineID]
	s.mu.RUnlock()
	if !ok {
		var err error
		meta, err = s.loadMeta(wineID)
		if err != nil {
			return nil, ErrNotFound
		}
	}

	f, err := os.Open(s.imagePath(wineID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Image{
		WineID:      wineID,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Reader:      f,
	}, nil
}

// Remove implements Store.
func (s *DiskStore) Remove(ctx context.Context, wineID string) error {
	s.mu.Lock()
	delete(s.meta, wineID)
	s.mu.Unlock()

	if err := os.Remove(s.imagePath(wineID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.metaPath(wineID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) imagePath(wineID string) string {
	return filepath.Join(s.dir, filepath.Base(wineID))
}

func (s *DiskStore) metaPath(wineID string) string {
	return s.imagePath(wineID) + ".meta.json"
}

func (s *DiskStore) saveMeta(wineID string, meta *diskMeta) {
	data, err := json.Marshal(meta)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.metaPath(wineID), data, 0o644)
}

func (s *DiskStore) loadMeta(wineID string) (*diskMeta, error) {
	data, err := os.ReadFile(s.metaPath(wineID))
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
