// Package cachedstore implements the cached-store wrapper: a
// read-through/write-through front end over a pluggable objectstore.Backend,
// filtering which keys are worth caching at all.
package cachedstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/objectstore"
	"github.com/chunkvault/chunkvault/internal/stats"
)

// Predicate decides whether a key is cache-worthy. Store accepts an
// injected predicate so alternative backends with a different key shape can
// override the default zarr-aware classification.
type Predicate func(key string) bool

// Store wraps a Backend with a Cache, implementing read-through on Get and
// write-through on Set. The backend is always the source of truth: cache
// errors on either path are logged and do not fail the caller so long as
// the backend call itself succeeded.
type Store struct {
	backend   objectstore.Backend
	cache     cache.Cache
	worthy    Predicate
	logger    *zap.Logger
	collector stats.Collector
}

// Option configures a Store at construction.
type Option func(*Store)

// WithCollector injects a metrics collector. Defaults to a no-op collector.
func WithCollector(collector stats.Collector) Option {
	return func(s *Store) {
		if collector != nil {
			s.collector = collector
		}
	}
}

// New creates a cached store wrapping backend with cache. If predicate is
// nil, DefaultPredicate is used. If logger is nil, a no-op logger is used.
func New(backend objectstore.Backend, c cache.Cache, predicate Predicate, logger *zap.Logger, opts ...Option) *Store {
	if predicate == nil {
		predicate = DefaultPredicate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:   backend,
		cache:     c,
		worthy:    predicate,
		logger:    logger,
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key, preferring the cache. A cache miss (or a
// non-cache-worthy key) falls through to the backend; a successful backend
// read is opportunistically admitted into the cache.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.collector.IncCounter(stats.MetricGets, 1)

	if !s.worthy(key) {
		return s.backend.Get(ctx, key)
	}

	if value, ok := s.cache.Get(ctx, key); ok {
		return value, true, nil
	}

	value, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	s.collector.IncCounter(stats.MetricBackendHits, 1)

	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Debug("cachedstore: cache admission failed on read-through", zap.String("key", key), zap.Error(err))
	}
	return value, true, nil
}

// Set writes value to the backend first; only on success does it populate
// the cache, and only if key is cache-worthy. A backend failure is
// propagated; a cache failure is logged and swallowed.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.collector.IncCounter(stats.MetricSets, 1)

	if err := s.backend.Set(ctx, key, value); err != nil {
		return err
	}
	if !s.worthy(key) {
		return nil
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Debug("cachedstore: cache admission failed on write-through", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Erase removes key from the backend first, then from the cache. A backend
// failure is propagated; a cache failure is logged and swallowed.
func (s *Store) Erase(ctx context.Context, key string) error {
	s.collector.IncCounter(stats.MetricErases, 1)

	if err := s.backend.Erase(ctx, key); err != nil {
		return err
	}
	if err := s.cache.Remove(ctx, key); err != nil {
		s.logger.Debug("cachedstore: cache removal failed after erase", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// ErasePrefix erases every backend key with the given prefix. Since neither
// tier is required to support prefix enumeration against the cache, the
// cache side is handled conservatively: the whole cache is cleared rather
// than attempting to scope the invalidation. The clear runs even when a
// backend erase fails partway through the list, since by then the backend
// has already dropped a subset of the matched keys and leaving the cache
// populated would let a later Get serve one of those as if it still existed.
func (s *Store) ErasePrefix(ctx context.Context, prefix string) error {
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return err
	}
	var eraseErr error
	for _, key := range keys {
		if err := s.backend.Erase(ctx, key); err != nil {
			eraseErr = err
			break
		}
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Debug("cachedstore: cache clear failed after prefix erase", zap.String("prefix", prefix), zap.Error(err))
	}
	return eraseErr
}

// Stats returns the underlying cache's statistics snapshot.
func (s *Store) Stats() cache.Stats {
	return s.cache.Stats()
}
