// Package metrics exposes the Prometheus instrumentation for the scan
// pipeline. Collectors are package-level and registered once via
// promauto, so every component records through the same registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_scans_total",
		Help: "Total number of scan requests processed",
	})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skinarb_scan_duration_seconds",
		Help:    "End-to-end duration of one scan call",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_cache_lookups_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	degradedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skinarb_degraded_rows_total",
		Help: "Rows whose reference lookup failed and were zeroed",
	})

	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skinarb_upstream_errors_total",
		Help: "Upstream fetch failures by source",
	}, []string{"source"})
)

// RecordScan observes one completed scan call.
func RecordScan(duration time.Duration) {
	scansTotal.Inc()
	scanDuration.Observe(duration.Seconds())
}

// RecordCacheHit counts a fresh cache read.
func RecordCacheHit(cache string) {
	cacheLookups.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss counts a stale or empty cache read.
func RecordCacheMiss(cache string) {
	cacheLookups.WithLabelValues(cache, "miss").Inc()
}

// RecordDegradedRow counts a row enriched through the failure path.
func RecordDegradedRow() {
	degradedRows.Inc()
}

// RecordUpstreamError counts a failed fetch against the named source.
func RecordUpstreamError(source string) {
	upstreamErrors.WithLabelValues(source).Inc()
}
