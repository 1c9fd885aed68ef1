// Package chunkvaultfx provides an fx module for a chunkvault.Store wired
// from an injected Backend, with lifecycle-managed background maintenance.
package chunkvaultfx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/chunkvault/chunkvault"
	"github.com/chunkvault/chunkvault/internal/stats"
	"github.com/chunkvault/chunkvault/internal/stats/logger"
)

// Config holds configuration for the fx-provided store.
type Config struct {
	// MemoryLimitBytes bounds the memory tier. Default is 64 MiB.
	MemoryLimitBytes int64

	// DiskRoot enables the disk tier when non-empty.
	DiskRoot string

	// DiskLimitBytes bounds the disk tier. Unset or <= 0 means unlimited.
	DiskLimitBytes int64

	// TTL applies a per-entry expiry at disk admission.
	TTL time.Duration

	// PromotionThreshold is the minimum decayed access frequency, in Hz,
	// for a disk-resident key to be promoted into memory.
	PromotionThreshold float64

	// DemotionThreshold is the minimum idle duration before a
	// memory-resident key becomes a demotion candidate.
	DemotionThreshold time.Duration

	// MaintenanceInterval is the period of the background sweep.
	MaintenanceInterval time.Duration
}

// Module provides a chunkvault.Store backed by an injected
// chunkvault.Backend. Requires a *zap.Logger, a Config, and a
// chunkvault.Backend to be provided by the host application.
var Module = fx.Module("chunkvault",
	fx.Provide(
		newStatsCollector,
		newStore,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("chunkvault.stats"))
}

// Params holds dependencies for creating the store.
type Params struct {
	fx.In

	Config    Config
	Backend   chunkvault.Backend
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided store.
type Result struct {
	fx.Out

	Store *chunkvault.Store
}

func newStore(p Params) (Result, error) {
	opts := []chunkvault.Option{
		chunkvault.WithBackend(p.Backend),
		chunkvault.WithStats(p.Collector),
		chunkvault.WithLogger(p.Logger.Named("chunkvault")),
	}
	if p.Config.MemoryLimitBytes > 0 {
		opts = append(opts, chunkvault.WithMemoryLimit(p.Config.MemoryLimitBytes))
	}
	if p.Config.DiskRoot != "" {
		opts = append(opts, chunkvault.WithDiskRoot(p.Config.DiskRoot))
	}
	if p.Config.DiskLimitBytes > 0 {
		opts = append(opts, chunkvault.WithDiskLimit(p.Config.DiskLimitBytes))
	}
	if p.Config.TTL > 0 {
		opts = append(opts, chunkvault.WithTTL(p.Config.TTL))
	}
	if p.Config.PromotionThreshold > 0 {
		opts = append(opts, chunkvault.WithPromotionThreshold(p.Config.PromotionThreshold))
	}
	if p.Config.DemotionThreshold > 0 {
		opts = append(opts, chunkvault.WithDemotionThreshold(p.Config.DemotionThreshold))
	}
	if p.Config.MaintenanceInterval > 0 {
		opts = append(opts, chunkvault.WithMaintenanceInterval(p.Config.MaintenanceInterval))
	}

	store, err := chunkvault.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return Result{Store: store}, nil
}
