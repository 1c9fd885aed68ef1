// Package objectstore defines the backend contract the cached-store wrapper
// fronts: the authoritative, non-caching key/value store behind the cache.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is a sentinel for a key missing from the backend. Get in the
// Backend contract reports a missing key as ok=false with a nil error, and
// none of the backends in this module return ErrNotFound.
var ErrNotFound = errors.New("objectstore: key not found")

// ErrNotSupported is returned by List when a backend does not implement
// prefix listing.
var ErrNotSupported = errors.New("objectstore: operation not supported")

// Backend is the minimal contract a storage backend must implement to be
// fronted by the cached-store wrapper. Errors are propagated as-is.
type Backend interface {
	// Get reads the value for key. ok is false (with a nil error) only
	// when the key legitimately does not exist.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set writes value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Erase removes key. Erasing an absent key succeeds.
	Erase(ctx context.Context, key string) error

	// List returns every key with the given prefix. Implementations that
	// cannot enumerate keys return ErrNotSupported; the wrapper's
	// prefix-erase path then returns that error without erasing any key or
	// clearing the cache.
	List(ctx context.Context, prefix string) ([]string, error)
}
