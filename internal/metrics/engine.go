package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching and delivery Prometheus metrics.
var (
	RankingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "ranking_requests_total",
			Help:      "Ranking requests by serving path and outcome",
		},
		[]string{"path", "status"}, // path: "primary" / "fallback"
	)

	RankingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rendezvous",
			Name:      "ranking_duration_seconds",
			Help:      "Ranking duration in seconds by serving path",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"path"},
	)

	SessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "sessions_connect_total",
			Help:      "Connect calls by result",
		},
		[]string{"result"}, // "created" / "reused"
	)

	MessagesAppendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "messages_appended_total",
			Help:      "Messages appended to session logs",
		},
	)

	PushDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rendezvous",
			Name:      "push_dropped_total",
			Help:      "Push events not delivered to a subscriber",
		},
		[]string{"reason"}, // "buffer_full" / "publish_error"
	)

	PushSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rendezvous",
			Name:      "push_subscribers",
			Help:      "Currently connected push subscribers",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers ranking, session and push metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RankingRequestsTotal)
	prometheus.MustRegister(RankingDuration)
	prometheus.MustRegister(SessionsCreatedTotal)
	prometheus.MustRegister(MessagesAppendedTotal)
	prometheus.MustRegister(PushDroppedTotal)
	prometheus.MustRegister(PushSubscribers)
	engineMetricsRegistered = true
}
