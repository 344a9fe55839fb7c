package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the cart module.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	MutationDuration prometheus.Histogram
}

// New creates a new Metrics instance with all cart module metrics registered.
func New() *Metrics {
	return &Metrics{
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_cart_mutations_total",
			Help: "Total cart mutations by operation",
		}, []string{"op"}),
		MutationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sproutmarket_cart_mutation_duration_seconds",
			Help:    "Duration of cart mutations including the per-buyer lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementMutation records one cart mutation for the given operation.
// Nil-safe so services can run without metrics in tests.
func (m *Metrics) IncrementMutation(op string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op).Inc()
}

// ObserveMutation records the duration of a cart mutation.
func (m *Metrics) ObserveMutation(start time.Time) {
	if m == nil {
		return
	}
	m.MutationDuration.Observe(time.Since(start).Seconds())
}
