package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric of the service.
const Namespace = "invoicegate"

// Query status label values.
const (
	StatusOK          = "ok"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
)

// Data source and rate limiter metrics.
var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_duration_seconds",
			Help:      "Data source read duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "status"},
	)

	QueryRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_rows",
			Help:      "Rows returned per data source read",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-agent rate limiter",
		},
		[]string{"backend"},
	)
)

var registerOnce sync.Once

// RegisterQueryMetrics registers query and rate limiter metrics. Safe to call more than once.
func RegisterQueryMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryRows)
		prometheus.MustRegister(RateLimitedTotal)
	})
}
