// Package memory stores artifact content in-memory for development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Store keeps artifacts in a map and returns pseudo URIs.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory artifact store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Put persists the content and returns a memory:// URI.
func (s *Store) Put(_ context.Context, path string, _ string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), body...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns stored content for inspection in tests.
func (s *Store) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[path]
	return body, ok
}
