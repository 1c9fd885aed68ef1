// Package memory implements the in-memory LRU cache tier: a
// byte-bounded, recency-ordered map with atomic hit/miss/size accounting.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/stats"
)

// recencyCapacity bounds the number of entries the underlying recency
// structure will track before it would evict by count. Eviction in this
// tier is driven entirely by our own byte accounting below, so this is set
// high enough that the count bound is never the reason an entry is evicted.
const recencyCapacity = 1 << 20

// Tier is the memory-resident cache. Lookups and admissions both mutate
// recency order, so both are taken under the same exclusive lock; counters
// are atomic and readable without it.
type Tier struct {
	limitBytes int64
	collector  stats.Collector

	mu      sync.Mutex
	recency *lru.Cache[string, []byte]

	currentBytes atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
}

var _ cache.Cache = (*Tier)(nil)

// Option configures a Tier at construction.
type Option func(*Tier)

// WithCollector injects a metrics collector. Defaults to a no-op collector.
func WithCollector(collector stats.Collector) Option {
	return func(t *Tier) {
		if collector != nil {
			t.collector = collector
		}
	}
}

// New creates a memory tier admitting up to limitBytes of resident value
// data.
func New(limitBytes int64, opts ...Option) (*Tier, error) {
	recency, err := lru.New[string, []byte](recencyCapacity)
	if err != nil {
		return nil, err
	}
	t := &Tier{
		limitBytes: limitBytes,
		recency:    recency,
		collector:  stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Get returns the value for key if resident, bumping it to
// most-recently-used. It never fails; absence is reported via ok=false.
func (t *Tier) Get(_ context.Context, key string) ([]byte, bool) {
	t.mu.Lock()
	value, ok := t.recency.Get(key)
	t.mu.Unlock()

	if !ok {
		t.misses.Add(1)
		t.collector.IncCounter(stats.MetricCacheMisses, 1)
		return nil, false
	}
	t.hits.Add(1)
	t.collector.IncCounter(stats.MetricCacheHits, 1)
	return value, true
}

// Set admits value under key, evicting least-recently-used entries until
// the tier's byte limit is satisfied. A value larger than limitBytes on its
// own fails with cache.ErrCacheFull without touching the existing entries.
func (t *Tier) Set(_ context.Context, key string, value []byte) error {
	size := int64(len(value))
	if size > t.limitBytes {
		return cache.ErrCacheFull
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, existed := t.recency.Peek(key); existed {
		t.currentBytes.Add(-int64(len(old)))
	}
	t.recency.Add(key, value)
	t.currentBytes.Add(size)

	for t.currentBytes.Load() > t.limitBytes {
		evictedKey, evictedValue, ok := t.recency.RemoveOldest()
		if !ok {
			break
		}
		if evictedKey == key {
			// The entry we just admitted is the only one left; its size
			// already satisfies the limit check above, so this cannot
			// recur, but guard against looping forever regardless.
			t.recency.Add(key, evictedValue)
			break
		}
		t.currentBytes.Add(-int64(len(evictedValue)))
	}
	t.collector.SetGauge(stats.MetricCacheSize, t.currentBytes.Load())
	return nil
}

// Remove deletes key. Removing an absent key succeeds.
func (t *Tier) Remove(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, existed := t.recency.Peek(key); existed {
		t.recency.Remove(key)
		t.currentBytes.Add(-int64(len(old)))
	}
	return nil
}

// Clear removes every entry and resets byte accounting. Cumulative
// hits/misses are left untouched.
func (t *Tier) Clear(_ context.Context) error {
	t.mu.Lock()
	t.recency.Purge()
	t.mu.Unlock()

	t.currentBytes.Store(0)
	return nil
}

// Size returns the current resident byte count.
func (t *Tier) Size() int64 {
	return t.currentBytes.Load()
}

// Stats returns a snapshot of hit/miss/size counters.
func (t *Tier) Stats() cache.Stats {
	t.mu.Lock()
	entries := int64(t.recency.Len())
	t.mu.Unlock()

	t.collector.SetGauge(stats.MetricCacheEntries, entries)
	return cache.Stats{
		Hits:       t.hits.Load(),
		Misses:     t.misses.Load(),
		SizeBytes:  t.currentBytes.Load(),
		EntryCount: entries,
	}
}
