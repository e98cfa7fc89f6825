package loopback

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "loopback",
			Name:      "attempts_total",
			Help:      "Corrective-retry attempts by outcome",
		},
		[]string{"outcome"},
	)

	degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "loopback",
		Name:      "degraded",
		Help:      "1 while consecutive failures are at or above the degraded threshold",
	})
)

func init() {
	prometheus.MustRegister(attemptsTotal, degradedGauge)
}
