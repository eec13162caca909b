package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks checkout fan-out and vendor state transitions.
type OrderMetrics struct {
	placed          *prometheus.CounterVec
	checkoutFailure *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	vendorWrites    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed by payment method.",
	}, []string{"payment_method"})
	checkoutFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts that did not complete, by reason.",
	}, []string{"reason"})
	checkoutLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "End to end checkout duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	vendorWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_vendor_writes_total",
		Help: "Vendor order writes performed during checkout fan-out.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Vendor order bucket transitions by outcome.",
	}, []string{"from", "to", "outcome"})
	reg.MustRegister(placed, checkoutFailure, checkoutLatency, vendorWrites, transitions)
	return &OrderMetrics{
		placed:          placed,
		checkoutFailure: checkoutFailure,
		checkoutLatency: checkoutLatency,
		vendorWrites:    vendorWrites,
		transitions:     transitions,
	}
}

func (m *OrderMetrics) IncPlaced(paymentMethod string) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *OrderMetrics) IncCheckoutFailure(reason string) {
	if m == nil || m.checkoutFailure == nil {
		return
	}
	m.checkoutFailure.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) ObserveCheckout(duration time.Duration) {
	if m == nil || m.checkoutLatency == nil {
		return
	}
	m.checkoutLatency.Observe(duration.Seconds())
}

// AddVendorWrites records the outcome of each vendor write in a fan-out.
func (m *OrderMetrics) AddVendorWrites(succeeded, failed int) {
	if m == nil || m.vendorWrites == nil {
		return
	}
	m.vendorWrites.WithLabelValues("success").Add(float64(succeeded))
	m.vendorWrites.WithLabelValues("failure").Add(float64(failed))
}

func (m *OrderMetrics) IncTransition(from, to, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(outcome)).Inc()
}
