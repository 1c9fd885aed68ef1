// Package chunkvault provides a transparent, multi-tier cache in front of a
// chunked-array object store: an in-memory LRU tier, an optional disk tier,
// and a hybrid controller that promotes hot disk entries into memory and
// demotes cold memory entries, all sitting behind a read-through/
// write-through wrapper over a pluggable backend.
//
// Example usage:
//
//	store, err := chunkvault.New(
//	    chunkvault.WithBackend(myBackend),
//	    chunkvault.WithMemoryLimit(64<<20),
//	    chunkvault.WithDiskRoot("/var/cache/chunkvault"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	value, ok, err := store.Get(ctx, "array/0.0.0")
package chunkvault

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/cache/disk"
	"github.com/chunkvault/chunkvault/internal/cache/hybrid"
	"github.com/chunkvault/chunkvault/internal/cache/memory"
	"github.com/chunkvault/chunkvault/internal/cachedstore"
	"github.com/chunkvault/chunkvault/internal/objectstore"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound describes a key absent from both the cache and the
	// backend. Store.Get reports that case as ok=false with a nil error and
	// does not return ErrNotFound.
	ErrNotFound = errors.New("chunkvault: key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("chunkvault: store closed")

	// ErrNoBackend indicates no backend was provided.
	ErrNoBackend = errors.New("chunkvault: no backend provided")
)

// Backend is the object-store contract the cache fronts. It is re-exported
// from internal/objectstore so callers never need to import that package
// directly.
type Backend = objectstore.Backend

// Re-exported backend sentinel errors.
var (
	ErrBackendNotFound     = objectstore.ErrNotFound
	ErrBackendNotSupported = objectstore.ErrNotSupported
)

// Re-exported cache sentinel errors.
var (
	ErrCacheFull     = cache.ErrCacheFull
	ErrIO            = cache.ErrIO
	ErrSerialization = cache.ErrSerialization
	ErrInvalidKey    = cache.ErrInvalidKey
)

// Stats is a point-in-time snapshot of the cache's operation counters.
type Stats = cache.Stats

// Store is a cache-accelerated front end over a Backend. A Store is safe for
// concurrent use by any number of goroutines.
type Store struct {
	wrapped *cachedstore.Store
	disk    *disk.Tier         // nil when no disk tier is configured
	hybrid  *hybrid.Controller // nil when the cache has no background maintenance loop
	logger  *zap.Logger
	closed  atomic.Bool
}

// New creates a Store with the given options. A Backend is required via
// WithBackend; every other option has a sensible default.
//
// If WithDiskRoot is set, New composes a hybrid.Controller over a memory
// tier and a disk tier and starts its background maintenance loop. If not,
// the cache is memory-only with no background loop. WithCache bypasses both
// and uses the supplied cache.Cache verbatim, with no maintenance loop
// started by this package.
func New(opts ...Option) (*Store, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.backend == nil {
		return nil, ErrNoBackend
	}

	s := &Store{logger: cfg.logger}

	c, err := cfg.buildCache(s)
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}

	storeOpts := []cachedstore.Option{cachedstore.WithCollector(cfg.stats)}
	s.wrapped = cachedstore.New(cfg.backend, c, cfg.predicate, cfg.logger.Named("cachedstore"), storeOpts...)

	s.logger.Debug("store initialized",
		zap.Bool("disk_tier", cfg.diskRoot != ""),
		zap.Int64("memory_limit_bytes", cfg.memoryLimitBytes),
	)
	return s, nil
}

// buildCache constructs the cache.Cache implementation per the resolved
// options, wiring disk and hybrid handles onto s for Close to manage.
func (cfg options) buildCache(s *Store) (cache.Cache, error) {
	if cfg.customCache != nil {
		return cfg.customCache, nil
	}

	memTier, err := memory.New(cfg.memoryLimitBytes, memory.WithCollector(cfg.stats))
	if err != nil {
		return nil, fmt.Errorf("creating memory tier: %w", err)
	}

	if cfg.diskRoot == "" {
		return memTier, nil
	}

	diskOpts := []disk.Option{
		disk.WithMaintenanceInterval(cfg.maintenanceInterval),
		disk.WithLogger(cfg.logger.Named("cache.disk")),
		disk.WithCollector(cfg.stats),
	}
	if cfg.ttl > 0 {
		diskOpts = append(diskOpts, disk.WithTTL(cfg.ttl))
	}
	diskTier, err := disk.New(cfg.diskRoot, cfg.diskLimitBytes, diskOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating disk tier: %w", err)
	}
	s.disk = diskTier

	ctrl := hybrid.New(memTier, diskTier, hybrid.Config{
		PromotionThreshold:  cfg.promotionThreshold,
		DemotionThreshold:   cfg.demotionThreshold,
		MaintenanceInterval: cfg.maintenanceInterval,
		Logger:              cfg.logger.Named("cache.hybrid"),
		Collector:           cfg.stats,
	})
	s.hybrid = ctrl

	ctx := context.Background()
	diskTier.Start(ctx)
	ctrl.Start(ctx)
	return ctrl, nil
}

// Get returns the value for key, preferring the cache, falling through to
// the backend on a miss. ok is false when the key is absent from both.
func (s *Store) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	return s.wrapped.Get(ctx, key)
}

// Set writes value to the backend and, if the key is cache-worthy,
// populates the cache.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.wrapped.Set(ctx, key, value)
}

// Erase removes key from the backend, then from the cache.
func (s *Store) Erase(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.wrapped.Erase(ctx, key)
}

// ErasePrefix removes every backend key with the given prefix, then clears
// the entire cache (the tiers do not support scoped prefix invalidation).
func (s *Store) ErasePrefix(ctx context.Context, prefix string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.wrapped.ErasePrefix(ctx, prefix)
}

// Stats returns the underlying cache's statistics snapshot.
func (s *Store) Stats() Stats {
	return s.wrapped.Stats()
}

// Close stops any background maintenance goroutines. After Close, the store
// should not be used.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs error
	if s.hybrid != nil {
		if err := s.hybrid.Close(); err != nil {
			errs = fmt.Errorf("closing hybrid controller: %w", err)
		}
	}
	if s.disk != nil {
		if err := s.disk.Close(); err != nil && errs == nil {
			errs = fmt.Errorf("closing disk tier: %w", err)
		}
	}
	return errs
}
