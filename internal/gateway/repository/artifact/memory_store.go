package artifact

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, mirror, path string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	key, err := objectKey(mirror, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, mirror, path string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	key, err := objectKey(mirror, path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

// objectKey joins mirror and path into the flat key used by the memory and
// S3 stores.
func objectKey(mirror, path string) (string, error) {
	mirror = strings.TrimSpace(mirror)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if mirror == "" {
		return "", fmt.Errorf("mirror is required")
	}
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	return strings.TrimSuffix(mirror, "/") + "/" + path, nil
}
