package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the analytics module.
type Metrics struct {
	Queries       *prometheus.CounterVec
	CacheOutcomes *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

// New creates a new Metrics instance with all analytics metrics registered.
func New() *Metrics {
	return &Metrics{
		Queries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_analytics_queries_total",
			Help: "Analytics queries by view",
		}, []string{"view"}),
		CacheOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_analytics_cache_total",
			Help: "Analytics cache lookups by outcome",
		}, []string{"outcome"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sproutmarket_analytics_query_duration_seconds",
			Help:    "Duration of analytics computations, cache misses only",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementQuery records one analytics query. Nil-safe so the service can
// run without metrics in tests.
func (m *Metrics) IncrementQuery(view string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(view).Inc()
}

// IncrementCache records one cache lookup outcome (hit or miss).
func (m *Metrics) IncrementCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveQuery records the duration of a computed (uncached) query.
func (m *Metrics) ObserveQuery(start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(time.Since(start).Seconds())
}
