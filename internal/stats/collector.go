// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Wrapper metrics.
	MetricGets        = "chunkvault_gets_total"
	MetricSets        = "chunkvault_sets_total"
	MetricErases      = "chunkvault_erases_total"
	MetricBackendHits = "chunkvault_backend_hits_total"

	// Cache contract metrics, reported by every tier and the hybrid.
	MetricCacheHits    = "chunkvault_cache_hits_total"
	MetricCacheMisses  = "chunkvault_cache_misses_total"
	MetricCacheSize    = "chunkvault_cache_size_bytes"
	MetricCacheEntries = "chunkvault_cache_entries"

	// Hybrid controller maintenance metrics.
	MetricPromotions    = "chunkvault_promotions_total"
	MetricDemotions     = "chunkvault_demotions_total"
	MetricDiskEvictions = "chunkvault_disk_evictions_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
