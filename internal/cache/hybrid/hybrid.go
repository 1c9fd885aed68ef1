// Package hybrid implements the hybrid controller: an L1/L2
// composition of a memory tier over a disk tier with per-key access
// frequency tracking and background promotion/demotion.
package hybrid

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/cache/disk"
	"github.com/chunkvault/chunkvault/internal/stats"
)

// Config holds the hybrid controller's tunables, mirroring the
// configuration table in the external interfaces of the core design.
type Config struct {
	// PromotionThreshold is the minimum decayed access frequency, in Hz,
	// for a disk-resident key to be swept back into memory.
	PromotionThreshold float64
	// DemotionThreshold is the minimum idle duration before a
	// memory-resident key becomes a demotion candidate.
	DemotionThreshold time.Duration
	// MaintenanceInterval is the period of the background sweep.
	MaintenanceInterval time.Duration
	// Logger receives maintenance diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
	// Collector receives promotion/demotion counters. Defaults to a no-op
	// collector.
	Collector stats.Collector
}

func (c Config) withDefaults() Config {
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = time.Minute
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Collector == nil {
		c.Collector = stats.NewNoop()
	}
	return c
}

// Controller composes a memory tier over an optional disk tier, presenting
// their union as a single cache.Cache.
type Controller struct {
	memory  cache.Cache
	disk    *disk.Tier // nil when no disk tier is configured
	tracker *tracker
	cfg     Config

	hits   atomic.Int64
	misses atomic.Int64

	cancel context.CancelFunc
	eg     *errgroup.Group
}

var _ cache.Cache = (*Controller)(nil)

// New creates a hybrid controller over memory and an optional disk tier.
// Pass a nil *disk.Tier to run memory-only.
func New(memory cache.Cache, diskTier *disk.Tier, cfg Config) *Controller {
	return &Controller{
		memory:  memory,
		disk:    diskTier,
		tracker: newTracker(),
		cfg:     cfg.withDefaults(),
	}
}

// Start launches the background maintenance sweep.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.maintenanceLoop(egCtx)
	})
	c.eg = eg
}

// Close stops the maintenance goroutine and waits for it to exit.
func (c *Controller) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.eg != nil {
		return c.eg.Wait()
	}
	return nil
}

// Get consults memory first, then disk. A disk hit triggers promotion into
// memory when the key is already known to be hot.
func (c *Controller) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.memory.Get(ctx, key); ok {
		c.tracker.recordAccess(key)
		c.hits.Add(1)
		c.cfg.Collector.IncCounter(stats.MetricCacheHits, 1)
		return value, true
	}

	if c.disk != nil {
		if value, ok := c.disk.Get(ctx, key); ok {
			c.tracker.recordAccess(key)
			c.hits.Add(1)
			c.cfg.Collector.IncCounter(stats.MetricCacheHits, 1)
			if c.tracker.isHot(key, c.cfg.PromotionThreshold) {
				if err := c.memory.Set(ctx, key, value); err != nil {
					c.cfg.Logger.Debug("hybrid: promotion to memory failed", zap.String("key", key), zap.Error(err))
				}
			}
			return value, true
		}
	}

	c.misses.Add(1)
	c.cfg.Collector.IncCounter(stats.MetricCacheMisses, 1)
	return nil, false
}

// Set writes through to memory and, if configured, to disk, independently
// of each other: a value too large for memory's bound may still
// fit comfortably within disk's, so a memory admission failure must never
// suppress the disk write-through. Memory's error is returned to the caller
// since memory is the primary tier; disk's error is logged and treated as
// non-fatal, since disk is the secondary tier.
func (c *Controller) Set(ctx context.Context, key string, value []byte) error {
	c.tracker.recordAccess(key)

	memErr := c.memory.Set(ctx, key, value)
	if c.disk != nil {
		if err := c.disk.Set(ctx, key, value); err != nil {
			c.cfg.Logger.Debug("hybrid: disk write-through failed", zap.String("key", key), zap.Error(err))
		}
	}
	return memErr
}

// Remove deletes key from both tiers and drops its access record.
func (c *Controller) Remove(ctx context.Context, key string) error {
	c.tracker.remove(key)

	var errs error
	errs = multierr.Append(errs, c.memory.Remove(ctx, key))
	if c.disk != nil {
		errs = multierr.Append(errs, c.disk.Remove(ctx, key))
	}
	return errs
}

// Clear empties both tiers and the access tracker.
func (c *Controller) Clear(ctx context.Context) error {
	c.tracker.clear()

	var errs error
	errs = multierr.Append(errs, c.memory.Clear(ctx))
	if c.disk != nil {
		errs = multierr.Append(errs, c.disk.Clear(ctx))
	}
	return errs
}

// Size returns the disk tier's resident bytes when a disk tier is
// configured, since Set write-throughs to disk whenever one exists and
// disk therefore normally holds every resident key; summing memory and
// disk would double-count every key Set has admitted to both. A key held
// only in memory (disk refused, evicted or expired it) is not counted.
// Memory-only configurations report memory's own size.
func (c *Controller) Size() int64 {
	if c.disk != nil {
		return c.disk.Size()
	}
	return c.memory.Size()
}

// Stats returns the hybrid controller's own hit/miss counters (one per Get
// call on this contract) alongside the resident size/entry count. When a
// disk tier is configured, disk's counts are used for the same reason Size
// uses them, and keys held only in memory are likewise left out. This
// matches the original Rust implementation's hybrid stats(), which uses
// disk_stats alone to avoid double-counting.
func (c *Controller) Stats() cache.Stats {
	var entries, size int64
	if c.disk != nil {
		diskStats := c.disk.Stats()
		entries = diskStats.EntryCount
		size = diskStats.SizeBytes
	} else {
		memStats := c.memory.Stats()
		entries = memStats.EntryCount
		size = memStats.SizeBytes
	}
	c.cfg.Collector.SetGauge(stats.MetricCacheSize, size)
	c.cfg.Collector.SetGauge(stats.MetricCacheEntries, entries)
	return cache.Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		SizeBytes:  size,
		EntryCount: entries,
	}
}

func (c *Controller) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RunMaintenanceOnce(ctx)
		}
	}
}

// RunMaintenanceOnce performs one maintenance sweep: disk expiry, demotion
// of memory-resident keys idle past DemotionThreshold, an optional
// promotion re-sweep of hot disk keys, and tracker growth capping. It is
// run periodically by Start's goroutine and exposed for deterministic
// tests.
func (c *Controller) RunMaintenanceOnce(ctx context.Context) {
	if c.disk != nil {
		c.disk.RunMaintenanceOnce(ctx)
	}

	demoted := 0
	for key, rec := range c.tracker.snapshot() {
		if time.Since(rec.lastAccess) < c.cfg.DemotionThreshold {
			continue
		}
		// Demotion never touches disk: the write path already put the
		// value there, so removing from memory is the entire operation.
		if err := c.memory.Remove(ctx, key); err != nil {
			c.cfg.Logger.Debug("hybrid: demotion failed", zap.String("key", key), zap.Error(err))
			continue
		}
		demoted++
	}

	promoted := 0
	if c.disk != nil && c.cfg.PromotionThreshold > 0 {
		for key, rec := range c.tracker.snapshot() {
			if rec.frequency < c.cfg.PromotionThreshold {
				continue
			}
			value, ok := c.disk.Get(ctx, key)
			if !ok {
				continue
			}
			if err := c.memory.Set(ctx, key, value); err != nil {
				c.cfg.Logger.Debug("hybrid: promotion sweep failed", zap.String("key", key), zap.Error(err))
				continue
			}
			promoted++
		}
	}

	capped := c.tracker.evictStale(c.cfg.DemotionThreshold)

	if demoted > 0 {
		c.cfg.Collector.IncCounter(stats.MetricDemotions, int64(demoted))
	}
	if promoted > 0 {
		c.cfg.Collector.IncCounter(stats.MetricPromotions, int64(promoted))
	}

	if demoted > 0 || promoted > 0 || capped > 0 {
		c.cfg.Logger.Debug("hybrid maintenance swept tracker",
			zap.Int("demoted", demoted),
			zap.Int("promoted", promoted),
			zap.Int("tracker_capped", capped))
	}
}
