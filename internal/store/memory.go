package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store as an in-process map. It is the volatile
// half of the client's storage: the transcript mirror lives here and is
// gone when the process exits, matching per-browser-session semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty volatile store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
	}
}

// Get returns the value for key and whether it was present.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Set writes the value for key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete removes the key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Ping always succeeds for the in-process store.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
