package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores objects as files under a root directory. Keys are
// joined onto root after validating they don't escape it.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a LocalBackend rooted at dir, creating it if
// necessary.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapInitError(err, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, WrapInitError(err, dir)
	}
	return &LocalBackend{root: abs}, nil
}

func (b *LocalBackend) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)[1:]
	full := filepath.Join(b.root, clean)
	if full != b.root && !filepathHasPrefix(full, b.root) {
		return "", fmt.Errorf("store: key %q escapes backend root", key)
	}
	return full, nil
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

// Write implements Backend.
func (b *LocalBackend) Write(_ context.Context, key string, r io.Reader) error {
	path, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapWriteError(err, path)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return WrapWriteError(err, path)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return WrapWriteError(err, path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return WrapWriteError(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return WrapWriteError(err, path)
	}
	return nil
}

// Open implements Backend.
func (b *LocalBackend) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	return f, nil
}

// Exists implements Backend.
func (b *LocalBackend) Exists(_ context.Context, key string) (bool, error) {
	path, err := b.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, WrapReadError(err, path)
}

// List returns all keys under prefix, relative to the backend root.
func (b *LocalBackend) List(_ context.Context, prefix string) ([]string, error) {
	dir, err := b.resolve(prefix)
	if err != nil {
		return nil, err
	}
	var keys []string
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, WrapReadError(err, dir)
	}
	return keys, nil
}

var _ Backend = (*LocalBackend)(nil)
