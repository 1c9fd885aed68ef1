// Package cache defines the tier-agnostic cache contract shared by the
// memory, disk, and hybrid implementations.
package cache

import (
	"context"
	"errors"
)

// Sentinel errors returned by Set/Remove/Clear. Callers should compare with
// errors.Is, since implementations may wrap these with additional context.
var (
	// ErrCacheFull is returned when a single value exceeds the tier's
	// capacity. This is a normal, expected condition, not a fault.
	ErrCacheFull = errors.New("cache: value exceeds tier capacity")

	// ErrIO is returned when a filesystem operation in the disk tier fails.
	ErrIO = errors.New("cache: io failure")

	// ErrSerialization is returned when a metadata record could not be
	// encoded or decoded.
	ErrSerialization = errors.New("cache: serialization failure")

	// ErrInvalidKey is returned when a key fails structural validation.
	ErrInvalidKey = errors.New("cache: invalid key")
)

// Stats is a point-in-time snapshot of a cache's operation counters. Hits,
// Misses and SizeBytes are atomic reads; the memory and disk tiers read
// EntryCount under a brief lock on their own index, so a snapshot is not
// lock-free.
type Stats struct {
	Hits       int64
	Misses     int64
	SizeBytes  int64
	EntryCount int64
}

// HitRate returns the hit ratio in [0, 1]. Returns 0 when there have been no
// lookups at all.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the uniform interface implemented by every tier (memory, disk)
// and by the hybrid controller composing them.
//
// Get never fails: a missing key is reported as ok=false, never as an error.
// Set, Remove, and Clear return one of the sentinel errors above, or nil.
// All operations are safe for concurrent use by any number of callers.
type Cache interface {
	// Get returns the value for key, if present. It never returns an error;
	// absence is reported via ok=false.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Set admits key/value into the cache. A value larger than the tier's
	// capacity fails with ErrCacheFull without evicting the rest of the
	// tier. An existing entry for key is replaced.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key from the cache. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error

	// Clear removes every entry. It resets byte accounting but is not
	// required to reset cumulative hit/miss counters.
	Clear(ctx context.Context) error

	// Size returns the current resident byte count.
	Size() int64

	// Stats returns a snapshot of hit/miss/size counters.
	Stats() Stats
}
