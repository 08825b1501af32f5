package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs to a filesystem directory. Retrieval references are
// stable path fragments under publicBase, served by a static file handler.
type LocalStore struct {
	dir        string
	publicBase string
}

// NewLocalStore ensures the uploads directory exists and returns the store.
func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir %q: %w", dir, err)
	}
	return &LocalStore{
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Store writes the content under a freshly generated key. A partially written
// file is removed on failure so the key never resolves.
func (s *LocalStore) Store(ctx context.Context, content io.Reader, size int64, originalName, mimetype string) (StoredBlob, error) {
	if err := ctx.Err(); err != nil {
		return StoredBlob{}, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	key := newStorageKey(originalName)
	path := filepath.Join(s.dir, key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredBlob{}, fmt.Errorf("%w: create %q: %v", ErrStorageWrite, key, err)
	}

	written, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return StoredBlob{}, fmt.Errorf("%w: write %q: %v", ErrStorageWrite, key, err)
	}

	return StoredBlob{
		StorageKey: key,
		Size:       written,
		Mimetype:   mimetype,
	}, nil
}

// Resolve returns the public path fragment for a stored key. The key must
// exist on disk; a missing blob is a resolve error, not an empty reference.
func (s *LocalStore) Resolve(ctx context.Context, storageKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageResolve, err)
	}
	if storageKey == "" || storageKey != filepath.Base(storageKey) {
		return "", fmt.Errorf("%w: invalid key %q", ErrStorageResolve, storageKey)
	}

	if _, err := os.Stat(filepath.Join(s.dir, storageKey)); err != nil {
		return "", fmt.Errorf("%w: stat %q: %v", ErrStorageResolve, storageKey, err)
	}

	return s.publicBase + "/" + storageKey, nil
}
