package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Provider attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	latencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Provider attempt latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	toolLoopTurns = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inferd",
		Subsystem: "tool_loop",
		Name:      "turns",
		Help:      "Model turns per tool-calling loop",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 10, 15, 20},
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, latencySeconds, toolLoopTurns)
}
