// Package disk implements the on-disk cache tier: a filename-hashed
// persistent map with per-entry metadata, TTL expiry, a total-size bound,
// and a start-of-process clean-slate invariant.
package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/cache/keyhash"
	"github.com/chunkvault/chunkvault/internal/stats"
)

// numStripes bounds the number of per-key file locks so the lock table
// itself never grows unboundedly with the keyspace.
const numStripes = 256

// entry is the in-memory index record mirroring the on-disk metadata file,
// kept so eviction and size accounting never need a directory scan.
type entry struct {
	key       string
	size      int64
	createdAt time.Time
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Tier is the disk-resident cache tier.
type Tier struct {
	root    string
	dataDir string
	metaDir string

	limitBytes          int64 // <= 0 means unlimited
	ttl                 time.Duration
	maintenanceInterval time.Duration
	logger              *zap.Logger
	collector           stats.Collector

	stripes [numStripes]sync.Mutex

	admMu        sync.Mutex
	index        map[string]entry // hash -> entry
	currentBytes atomic.Int64

	hits   atomic.Int64
	misses atomic.Int64

	cancel context.CancelFunc
	eg     *errgroup.Group
}

var _ cache.Cache = (*Tier)(nil)

// Option configures a Tier at construction.
type Option func(*Tier)

// WithTTL sets a per-entry expiry applied at admission. Zero disables TTL.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tier) { t.ttl = ttl }
}

// WithMaintenanceInterval sets the period of the background expiry/eviction
// sweep. Defaults to one minute.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(t *Tier) { t.maintenanceInterval = d }
}

// WithLogger injects a logger for maintenance and I/O diagnostics. Defaults
// to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tier) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithCollector injects a metrics collector. Defaults to a no-op collector.
func WithCollector(collector stats.Collector) Option {
	return func(t *Tier) {
		if collector != nil {
			t.collector = collector
		}
	}
}

// New creates a disk tier rooted at root, enforcing the clean-slate
// invariant: every pre-existing file under root is removed before New
// returns. limitBytes <= 0 means unlimited.
func New(root string, limitBytes int64, opts ...Option) (*Tier, error) {
	t := &Tier{
		root:                root,
		dataDir:             filepath.Join(root, "data"),
		metaDir:             filepath.Join(root, "meta"),
		limitBytes:          limitBytes,
		maintenanceInterval: time.Minute,
		logger:              zap.NewNop(),
		collector:           stats.NewNoop(),
		index:               make(map[string]entry),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.resetRoot(); err != nil {
		return nil, fmt.Errorf("disk tier clean-slate: %w", err)
	}
	return t, nil
}

func (t *Tier) resetRoot() error {
	if err := os.RemoveAll(t.root); err != nil {
		return fmt.Errorf("removing stale root: %w", err)
	}
	if err := os.MkdirAll(t.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.MkdirAll(t.metaDir, 0o755); err != nil {
		return fmt.Errorf("creating meta dir: %w", err)
	}
	return nil
}

// Start launches the background maintenance sweep. It returns once the
// goroutine is running; call Close to stop it.
func (t *Tier) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return t.maintenanceLoop(egCtx)
	})
	t.eg = eg
}

// Close stops the maintenance goroutine, if running, and waits for it to
// exit.
func (t *Tier) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.eg != nil {
		return t.eg.Wait()
	}
	return nil
}

func (t *Tier) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(t.maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.RunMaintenanceOnce(ctx)
		}
	}
}

func (t *Tier) dataPath(hash string) string { return filepath.Join(t.dataDir, hash+".bin") }
func (t *Tier) metaPath(hash string) string { return filepath.Join(t.metaDir, hash+".json") }

func (t *Tier) stripeLock(hash string) *sync.Mutex {
	b, err := strconv.ParseUint(hash[:2], 16, 8)
	if err != nil {
		b = 0
	}
	return &t.stripes[byte(b)]
}

// Get returns the value for key if a live, non-expired, non-colliding entry
// exists on disk.
func (t *Tier) Get(_ context.Context, key string) ([]byte, bool) {
	hash := keyhash.Hex(key)
	lock := t.stripeLock(hash)
	lock.Lock()
	defer lock.Unlock()

	meta, err := readMetadata(t.metaPath(hash))
	if err != nil {
		t.recordMiss()
		return nil, false
	}
	if meta.OriginalKey != key {
		// Hash collision with a different key currently occupying the slot.
		t.recordMiss()
		return nil, false
	}
	if meta.expired(time.Now()) {
		t.removeFiles(hash)
		t.removeFromIndex(hash)
		t.recordMiss()
		return nil, false
	}

	value, err := os.ReadFile(t.dataPath(hash))
	if err != nil {
		t.recordMiss()
		return nil, false
	}

	t.hits.Add(1)
	t.collector.IncCounter(stats.MetricCacheHits, 1)
	return value, true
}

func (t *Tier) recordMiss() {
	t.misses.Add(1)
	t.collector.IncCounter(stats.MetricCacheMisses, 1)
}

// Set admits key/value, writing the value and its metadata atomically. A
// value larger than limitBytes fails with cache.ErrCacheFull without
// touching existing entries.
func (t *Tier) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	size := int64(len(value))
	if t.limitBytes > 0 && size > t.limitBytes {
		return cache.ErrCacheFull
	}

	hash := keyhash.Hex(key)
	lock := t.stripeLock(hash)
	lock.Lock()

	now := time.Now()
	var expiresAt time.Time
	if t.ttl > 0 {
		expiresAt = now.Add(t.ttl)
	}

	if err := writeAtomic(t.dataPath(hash), value); err != nil {
		lock.Unlock()
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	meta := metadata{
		OriginalKey: key,
		Size:        size,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := writeMetadata(t.metaPath(hash), meta); err != nil {
		lock.Unlock()
		return fmt.Errorf("%w: %v", cache.ErrSerialization, err)
	}

	toEvict := t.admitToIndex(hash, entry{key: key, size: size, createdAt: now, expiresAt: expiresAt})
	lock.Unlock()

	// Evicted hashes may stripe-collide with hash itself, so their files
	// are only removed once this Set's own stripe lock above is released.
	for _, evictHash := range toEvict {
		t.removeFilesLocked(evictHash)
	}
	if len(toEvict) > 0 {
		t.collector.IncCounter(stats.MetricDiskEvictions, int64(len(toEvict)))
	}
	t.collector.SetGauge(stats.MetricCacheSize, t.currentBytes.Load())
	return nil
}

// admitToIndex records the new entry's accounting and selects
// approximate-least-recently-created entries (preferring already-expired
// ones) for eviction until the tier is within its byte bound. It only
// mutates the in-memory index; callers remove the backing files themselves,
// after releasing any stripe lock they hold, to avoid self-deadlock when an
// evicted hash shares a stripe with the hash just admitted.
func (t *Tier) admitToIndex(hash string, e entry) []string {
	t.admMu.Lock()
	defer t.admMu.Unlock()

	if old, existed := t.index[hash]; existed {
		t.currentBytes.Add(-old.size)
	}
	t.index[hash] = e
	t.currentBytes.Add(e.size)

	if t.limitBytes > 0 {
		return t.selectEvictionsLocked(hash)
	}
	return nil
}

// selectEvictionsLocked must be called with admMu held. It mutates the
// index and currentBytes for every entry it selects, and returns their
// hashes so the caller can remove the backing files outside the lock.
func (t *Tier) selectEvictionsLocked(keepHash string) []string {
	if t.currentBytes.Load() <= t.limitBytes {
		return nil
	}

	type candidate struct {
		hash string
		e    entry
	}
	candidates := make([]candidate, 0, len(t.index))
	for h, e := range t.index {
		if h == keepHash {
			continue
		}
		candidates = append(candidates, candidate{h, e})
	}
	now := time.Now()
	sort.Slice(candidates, func(i, j int) bool {
		iExpired, jExpired := candidates[i].e.expired(now), candidates[j].e.expired(now)
		if iExpired != jExpired {
			return iExpired // expired entries sort first
		}
		return candidates[i].e.createdAt.Before(candidates[j].e.createdAt)
	})

	var evicted []string
	for _, c := range candidates {
		if t.currentBytes.Load() <= t.limitBytes {
			break
		}
		delete(t.index, c.hash)
		t.currentBytes.Add(-c.e.size)
		evicted = append(evicted, c.hash)
	}
	return evicted
}

func (t *Tier) removeFromIndex(hash string) {
	t.admMu.Lock()
	if e, ok := t.index[hash]; ok {
		delete(t.index, hash)
		t.currentBytes.Add(-e.size)
	}
	t.admMu.Unlock()
}

func (t *Tier) removeFiles(hash string) {
	if err := os.Remove(t.dataPath(hash)); err != nil && !os.IsNotExist(err) {
		t.logger.Debug("disk tier: removing value file", zap.Error(err))
	}
	if err := os.Remove(t.metaPath(hash)); err != nil && !os.IsNotExist(err) {
		t.logger.Debug("disk tier: removing metadata file", zap.Error(err))
	}
}

// removeFilesLocked removes hash's backing files under its stripe lock, so
// it can never race a concurrent Set that has reused the same hash for a
// new key. Eviction/expiry removal paths that do not already hold that
// stripe lock go through this; Get's expiry path holds it and calls
// removeFiles directly.
func (t *Tier) removeFilesLocked(hash string) {
	lock := t.stripeLock(hash)
	lock.Lock()
	t.removeFiles(hash)
	lock.Unlock()
}

// Remove deletes key. Removing an absent key succeeds.
func (t *Tier) Remove(_ context.Context, key string) error {
	hash := keyhash.Hex(key)
	t.removeFilesLocked(hash)
	t.removeFromIndex(hash)
	return nil
}

// Clear removes every entry, reasserting a clean-slate state.
func (t *Tier) Clear(_ context.Context) error {
	t.admMu.Lock()
	hashes := make([]string, 0, len(t.index))
	for h := range t.index {
		hashes = append(hashes, h)
	}
	t.index = make(map[string]entry)
	t.currentBytes.Store(0)
	t.admMu.Unlock()

	for _, h := range hashes {
		t.removeFilesLocked(h)
	}
	return nil
}

// Size returns the current resident byte count.
func (t *Tier) Size() int64 {
	return t.currentBytes.Load()
}

// Stats returns a snapshot of hit/miss/size counters.
func (t *Tier) Stats() cache.Stats {
	t.admMu.Lock()
	entries := int64(len(t.index))
	t.admMu.Unlock()

	t.collector.SetGauge(stats.MetricCacheEntries, entries)
	return cache.Stats{
		Hits:       t.hits.Load(),
		Misses:     t.misses.Load(),
		SizeBytes:  t.currentBytes.Load(),
		EntryCount: entries,
	}
}

// RunMaintenanceOnce performs one expiry-and-size-bound sweep. It is called
// periodically by the background loop started by Start, and exposed so
// callers (and tests) can drive maintenance deterministically.
func (t *Tier) RunMaintenanceOnce(_ context.Context) {
	now := time.Now()

	t.admMu.Lock()
	var expired []string
	for h, e := range t.index {
		if e.expired(now) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		e := t.index[h]
		delete(t.index, h)
		t.currentBytes.Add(-e.size)
	}
	var overBound []string
	if t.limitBytes > 0 && t.currentBytes.Load() > t.limitBytes {
		overBound = t.selectEvictionsLocked("")
	}
	t.admMu.Unlock()

	for _, h := range expired {
		t.removeFilesLocked(h)
	}
	for _, h := range overBound {
		t.removeFilesLocked(h)
	}
	if len(expired) > 0 || len(overBound) > 0 {
		t.logger.Debug("disk tier maintenance swept entries",
			zap.Int("expired", len(expired)),
			zap.Int("over_bound", len(overBound)))
	}
}

func validateKey(key string) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	return nil
}
