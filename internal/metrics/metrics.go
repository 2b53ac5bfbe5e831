// Package metrics provides Prometheus counters for archive writes.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

// Write results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Metrics provides observability for the archive backend.
type Metrics struct {
	// Registry and store writes by operation and result
	Writes *prometheus.CounterVec

	// Field-level validation failures by rule
	ValidationFailures *prometheus.CounterVec

	// Write latency by operation, including JSONL persistence
	WriteLatency *prometheus.HistogramVec
}

// New registers the archive metrics with reg. A nil reg gets a private
// registry, which keeps repeated backends in one process from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_writes_total",
			Help: "Total registry and entity writes by operation and result",
		}, []string{"op", "result"}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_validation_failures_total",
			Help: "Total field-level validation failures by rule",
		}, []string{"rule"}),

		WriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archivist_write_duration_seconds",
			Help:    "Duration of writes including JSONL persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

// ObserveWrite records the outcome and duration of one write.
func (m *Metrics) ObserveWrite(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(op, Result(err)).Inc()
	m.WriteLatency.WithLabelValues(op).Observe(d.Seconds())

	var verr *types.ValidationError
	if errors.As(err, &verr) {
		for _, fe := range verr.Errors {
			m.ValidationFailures.WithLabelValues(string(fe.Rule)).Inc()
		}
	}
}

// Result classifies a write error into a result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, types.ErrConflictingUpdate):
		return ResultConflict
	case errors.Is(err, types.ErrValidationFailed),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrUnknownEntityType),
		errors.Is(err, types.ErrDuplicateName),
		errors.Is(err, types.ErrDuplicateField),
		errors.Is(err, types.ErrInvalidConfiguration),
		errors.Is(err, types.ErrInvalidFieldType),
		errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrTypeInUse):
		return ResultRejected
	}
	return ResultError
}
