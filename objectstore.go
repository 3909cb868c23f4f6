package stratum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// localObjectStore is a directory-backed ObjectStore. Writes land via a
// temp-file-then-rename so readers never observe a partial object.
type localObjectStore struct {
	dir string
}

// NewLocalObjectStore creates (if needed) dir and returns an ObjectStore
// rooted there.
func NewLocalObjectStore(dir string) (*localObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stratum: create object store dir: %w", err)
	}
	return &localObjectStore{dir: dir}, nil
}

// Put atomically writes data under key: it writes to a sibling temp file,
// syncs, and renames into place so readers never observe a partial object.
func (o *localObjectStore) Put(ctx context.Context, key string, data []byte) error {
	_ = ctx
	target := filepath.Join(o.dir, key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Get reads the object stored at key.
func (o *localObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	return os.ReadFile(filepath.Join(o.dir, key))
}
