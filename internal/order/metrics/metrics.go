package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the order module.
type Metrics struct {
	OrdersCreated     *prometheus.CounterVec
	CheckoutFailures  *prometheus.CounterVec
	CheckoutDuration  prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
	TrackingEvents    prometheus.Counter
}

// New creates a new Metrics instance with all order module metrics registered.
func New() *Metrics {
	return &Metrics{
		OrdersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_orders_created_total",
			Help: "Orders created at checkout, by outcome",
		}, []string{"outcome"}),
		CheckoutFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_checkout_failures_total",
			Help: "Checkout attempts rejected before any order was created",
		}, []string{"reason"}),
		CheckoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sproutmarket_checkout_duration_seconds",
			Help:    "Duration of checkout including stock checks and order writes",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sproutmarket_order_status_transitions_total",
			Help: "Order status transitions by target status",
		}, []string{"to"}),
		TrackingEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sproutmarket_order_tracking_events_total",
			Help: "Delivery tracking events appended",
		}),
	}
}

// IncrementOrdersCreated records one created order. Nil-safe so services can
// run without metrics in tests.
func (m *Metrics) IncrementOrdersCreated(outcome string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(outcome).Inc()
}

// IncrementCheckoutFailure records a checkout rejected as a whole.
func (m *Metrics) IncrementCheckoutFailure(reason string) {
	if m == nil {
		return
	}
	m.CheckoutFailures.WithLabelValues(reason).Inc()
}

// ObserveCheckout records the duration of a checkout attempt.
func (m *Metrics) ObserveCheckout(start time.Time) {
	if m == nil {
		return
	}
	m.CheckoutDuration.Observe(time.Since(start).Seconds())
}

// IncrementTransition records one status transition.
func (m *Metrics) IncrementTransition(to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Inc()
}

// IncrementTracking records one appended tracking event.
func (m *Metrics) IncrementTracking() {
	if m == nil {
		return
	}
	m.TrackingEvents.Inc()
}
