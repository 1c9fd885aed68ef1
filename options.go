package chunkvault

import (
	"time"

	"go.uber.org/zap"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/cachedstore"
	"github.com/chunkvault/chunkvault/internal/stats"
)

// Option configures a Store.
type Option interface {
	apply(*options)
}

// options holds the store configuration assembled from defaults and Option
// values before New constructs the cache tiers.
type options struct {
	backend Backend

	memoryLimitBytes int64

	diskRoot            string
	diskLimitBytes      int64
	ttl                 time.Duration
	maintenanceInterval time.Duration

	promotionThreshold float64
	demotionThreshold  time.Duration

	predicate   cachedstore.Predicate
	customCache cache.Cache

	stats  stats.Collector
	logger *zap.Logger
}

// defaultOptions returns the default configuration: a 64 MiB memory-only
// cache, no disk tier, no TTL, and no-op observability.
func defaultOptions() options {
	return options{
		memoryLimitBytes:    64 << 20,
		maintenanceInterval: time.Minute,
		promotionThreshold:  0.1,
		demotionThreshold:   5 * time.Minute,
		stats:               stats.NewNoop(),
		logger:              zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithBackend sets the object-store backend the cache fronts. Required.
func WithBackend(b Backend) Option {
	return optionFunc(func(o *options) {
		o.backend = b
	})
}

// WithMemoryLimit sets the memory tier's resident byte bound.
// Default is 64 MiB.
func WithMemoryLimit(bytes int64) Option {
	return optionFunc(func(o *options) {
		o.memoryLimitBytes = bytes
	})
}

// WithDiskRoot enables the disk tier, rooted at dir. The directory and any
// pre-existing contents are wiped at construction (clean-slate invariant).
func WithDiskRoot(dir string) Option {
	return optionFunc(func(o *options) {
		o.diskRoot = dir
	})
}

// WithDiskLimit sets the disk tier's resident byte bound. Unset or <= 0
// means unlimited.
func WithDiskLimit(bytes int64) Option {
	return optionFunc(func(o *options) {
		o.diskLimitBytes = bytes
	})
}

// WithTTL sets a per-entry expiry applied at disk admission. Has no effect
// without WithDiskRoot.
func WithTTL(ttl time.Duration) Option {
	return optionFunc(func(o *options) {
		o.ttl = ttl
	})
}

// WithPromotionThreshold sets the minimum decayed access frequency, in Hz,
// for a disk-resident key to be swept back into memory. Has no effect
// without WithDiskRoot.
func WithPromotionThreshold(hz float64) Option {
	return optionFunc(func(o *options) {
		o.promotionThreshold = hz
	})
}

// WithDemotionThreshold sets the minimum idle duration before a
// memory-resident key becomes a demotion candidate. Default is 5 minutes.
func WithDemotionThreshold(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.demotionThreshold = d
	})
}

// WithMaintenanceInterval sets the period of the background promotion,
// demotion, and expiry sweep. Default is one minute.
func WithMaintenanceInterval(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.maintenanceInterval = d
	})
}

// WithCacheWorthinessPredicate overrides the default key-class filter
// deciding which keys the cache ever interacts with.
func WithCacheWorthinessPredicate(p func(key string) bool) Option {
	return optionFunc(func(o *options) {
		o.predicate = p
	})
}

// WithCache replaces the default memory/hybrid composition with a
// caller-supplied cache.Cache. When set, WithMemoryLimit, WithDiskRoot, and
// the other tier-tuning options are ignored.
func WithCache(c cache.Cache) Option {
	return optionFunc(func(o *options) {
		o.customCache = c
	})
}

// WithStats sets the metrics collector. Default is a no-op collector.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
