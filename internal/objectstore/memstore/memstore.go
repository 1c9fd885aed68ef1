// Package memstore provides an in-memory Backend implementation for tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chunkvault/chunkvault/internal/objectstore"
)

// Backend is an in-memory objectstore.Backend for testing.
type Backend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ objectstore.Backend = (*Backend)(nil)

// New creates a new in-memory backend.
func New() *Backend {
	return &Backend{
		values: make(map[string][]byte),
	}
}

// Get reads key from memory.
func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.values[key]
	if !ok {
		return nil, false, nil
	}
	// Copy out so the caller can't mutate our backing store.
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set writes value under key. The data is copied to prevent caller
// mutations from affecting the backend.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	b.values[key] = copied
	return nil
}

// Erase removes key. Erasing an absent key succeeds.
func (b *Backend) Erase(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	return nil
}

// List returns every key with the given prefix, sorted for deterministic
// test assertions.
func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for k := range b.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
