package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps blobs as files under a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(name)), nil
}

// Save writes data atomically: a temp file in the target directory is
// renamed over the final name.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("rename blob: %w", err)
	}

	info, err := s.stat(name, p)
	if err != nil {
		return nil, err
	}
	info.SHA256 = fmt.Sprintf("%x", sha256.Sum256(data))
	return info, nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, *Info, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}
	info, err := s.stat(name, p)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) Stat(_ context.Context, name string) (*Info, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return s.stat(name, p)
}

func (s *LocalStore) stat(name, p string) (*Info, error) {
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat blob: %w", err)
	}
	if fi.IsDir() {
		return nil, ErrNotFound
	}
	return &Info{
		Name:        name,
		ContentType: ContentTypeFor(name),
		Size:        fi.Size(),
		ModTime:     fi.ModTime().UTC(),
	}, nil
}
