package metrics

import "github.com/prometheus/client_golang/prometheus"

// Annotation Prometheus metrics.
var (
	AnnotationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "annotation_requests_total",
			Help:      "Total number of annotation requests to the provider",
		},
		[]string{"provider", "model", "status"},
	)

	AnnotationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rendezvous",
			Name:      "annotation_request_duration_seconds",
			Help:      "Annotation request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	AnnotationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "annotation_tokens_total",
			Help:      "Total annotation tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	AnnotationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "annotation_errors_total",
			Help:      "Total annotation errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	AnnotationBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rendezvous",
			Name:      "annotation_budget_tokens_remaining",
			Help:      "Remaining annotation token budget",
		},
		[]string{"provider", "period"},
	)

	AnnotationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "annotation_cache_total",
			Help:      "Annotation cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	AnnotationFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "annotation_fallback_total",
			Help:      "Annotations replaced by the default text",
		},
		[]string{"reason"}, // "error" / "timeout" / "empty"
	)
)

var annMetricsRegistered bool

// RegisterAnnotationMetrics registers Prometheus annotation metrics. Must be called once from main.
func RegisterAnnotationMetrics() {
	if annMetricsRegistered {
		return
	}
	prometheus.MustRegister(AnnotationRequestsTotal)
	prometheus.MustRegister(AnnotationRequestDuration)
	prometheus.MustRegister(AnnotationTokensTotal)
	prometheus.MustRegister(AnnotationErrorsTotal)
	prometheus.MustRegister(AnnotationBudgetTokensRemaining)
	prometheus.MustRegister(AnnotationCacheTotal)
	prometheus.MustRegister(AnnotationFallbackTotal)
	annMetricsRegistered = true
}
