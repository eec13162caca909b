package metrics

import (
	"errors"
	"time"

	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/prometheus/client_golang/prometheus"
)

// DocStoreMetrics records latency and failures of document store operations.
type DocStoreMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewDocStoreMetrics registers the document store metrics on the provided registerer.
func NewDocStoreMetrics(reg prometheus.Registerer) *DocStoreMetrics {
	if reg == nil {
		return &DocStoreMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docstore_operation_duration_seconds",
		Help:    "Duration of document store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_operation_failures_total",
		Help: "Failed document store operations by failure kind.",
	}, []string{"op", "kind"})
	reg.MustRegister(duration, failures)
	return &DocStoreMetrics{duration: duration, failures: failures}
}

// ObserveOperation satisfies docstore.Observer.
func (m *DocStoreMetrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op = normalizeLabel(op)
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(op, failureKind(err)).Inc()
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, docstore.ErrPreconditionFailed):
		return "precondition"
	case errors.Is(err, docstore.ErrContention):
		return "contention"
	case docstore.IsUnavailable(err):
		return "unavailable"
	case errors.Is(err, docstore.ErrInvalidPath), errors.Is(err, docstore.ErrInvalidValue):
		return "invalid"
	default:
		return "error"
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
