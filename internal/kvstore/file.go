package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const fileSuffix = ".kv"

// FileStore keeps one file per key under a base directory. Writes go to a
// temp file first and are renamed into place, so a crash mid-write leaves the
// previous value intact.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore returns a FileStore rooted at dir on fs. A nil fs uses the OS
// filesystem.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, dir: dir}
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, wrap("load", key, err)
	}
	data, err := afero.ReadFile(s.fs, s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, wrap("load", key, err)
	}
	return data, true, nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return wrap("save", key, err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return wrap("save", key, fmt.Errorf("create dir: %w", err))
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".tmp-*")
	if err != nil {
		return wrap("save", key, fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return wrap("save", key, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return wrap("save", key, fmt.Errorf("close temp file: %w", err))
	}
	if err := s.fs.Rename(tmpName, s.Path(key)); err != nil {
		_ = s.fs.Remove(tmpName)
		return wrap("save", key, fmt.Errorf("rename: %w", err))
	}
	return nil
}

// Remove implements Store. Removing a missing key is not an error.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return wrap("remove", key, err)
	}
	if err := s.fs.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrap("remove", key, err)
	}
	return nil
}
