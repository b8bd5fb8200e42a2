package storage

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps uploads in process. Used when no object storage is
// configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	base    string
	objects map[string]Object
}

func NewMemoryStore(base string) *MemoryStore {
	if base == "" {
		base = "memory://media"
	}
	return &MemoryStore{base: base, objects: map[string]Object{}}
}

func (s *MemoryStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "read upload %s", key)
	}
	s.mu.Lock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return PublicURL(s.base, key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
