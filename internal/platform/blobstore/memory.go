package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"
)

type storedBlob struct {
	info    Info
	content []byte
}

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*storedBlob)}
}

func (s *MemoryStore) Save(_ context.Context, name string, data []byte) (*Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	content := append([]byte(nil), data...)
	info := Info{
		Name:        name,
		ContentType: ContentTypeFor(name),
		Size:        int64(len(content)),
		SHA256:      fmt.Sprintf("%x", sha256.Sum256(content)),
		ModTime:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[name] = &storedBlob{info: info, content: content}
	s.mu.Unlock()

	out := info
	return &out, nil
}

func (s *MemoryStore) Open(_ context.Context, name string) (io.ReadCloser, *Info, error) {
	s.mu.RLock()
	b, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	info := b.info
	return io.NopCloser(bytes.NewReader(b.content)), &info, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, name)
	return nil
}

func (s *MemoryStore) Stat(_ context.Context, name string) (*Info, error) {
	s.mu.RLock()
	b, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	info := b.info
	return &info, nil
}

// Len is the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
