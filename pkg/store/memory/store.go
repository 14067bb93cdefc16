// Package memory provides an in-process durable tier. Entries do not survive
// a restart; it exists for tests and for deployments that only want the
// second tier to outlive ClearMemory calls.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/imgloader/pkg/store"
)

// Store is a map-backed implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// New creates an empty memory store.
func New() *Store {
	return &Store{entries: make(map[string]string)}
}

// Get returns the entry for key.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", store.ErrStoreClosed
	}
	v, ok := s.entries[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

// Put stores value under key.
func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	s.entries[key] = value
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

// Len returns the number of entries.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, store.ErrStoreClosed
	}
	return len(s.entries), nil
}

// Healthcheck reports ErrStoreClosed once the store is closed.
func (s *Store) Healthcheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// Close drops all entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}

var _ store.Store = (*Store)(nil)
