package rendezvous

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/rendezvous/internal/domain"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pushEvents *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rendezvous",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous",
			Subsystem: "sdk",
			Name:      "conversation_push_events_total",
			Help:      "Push events seen by conversations, by type and whether they added a message to the view.",
		}, []string{"type", "result"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.pushEvents); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("rendezvous: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("rendezvous: register metric: %w", err)
	}
	return nil
}

// outcomes maps caller-visible domain errors to a metric label.
// Anything else is "error".
var outcomes = []struct {
	err   error
	label string
}{
	{domain.ErrSessionEnded, "ended"},
	{domain.ErrForbidden, "forbidden"},
	{domain.ErrSessionNotFound, "not_found"},
	{domain.ErrContextNotFound, "not_found"},
	{domain.ErrNotFound, "not_found"},
	{domain.ErrNoProfileVector, "no_vector"},
	{domain.ErrDuplicateRequest, "duplicate"},
	{domain.ErrMatchingUnavailable, "unavailable"},
	{domain.ErrVectorDimMismatch, "invalid"},
	{domain.ErrInvalidSchema, "invalid"},
	{domain.ErrEmptyContent, "invalid"},
	{domain.ErrSelfMatch, "invalid"},
	{domain.ErrInvalidCursor, "invalid"},
	{domain.ErrAlreadyExists, "exists"},
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// observe records one operation. Domain outcomes such as an ended session are
// logged at debug; only unclassified failures reach warn.
func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, result).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	switch result {
	case "ok":
		o.logger.Debug("operation completed", "op", op, "duration", dur)
	case "error":
		o.logger.Warn("operation failed", "op", op, "duration", dur, "error", err)
	default:
		o.logger.Debug("operation rejected", "op", op, "outcome", result, "duration", dur, "error", err)
	}
}

// pushed records a push event; fresh is false when the message was already in the view.
func (o *observer) pushed(eventType string, fresh bool) {
	if o == nil || o.metrics == nil {
		return
	}
	result := "duplicate"
	if fresh {
		result = "delivered"
	}
	o.metrics.pushEvents.WithLabelValues(eventType, result).Inc()
}
