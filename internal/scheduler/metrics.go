package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	usedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "scheduler",
		Name:      "used_mb",
		Help:      "Summed size of resident slots in MB",
	})

	budgetGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inferd",
		Subsystem: "scheduler",
		Name:      "capacity_mb",
		Help:      "Usable budget (budget minus margin) in MB, 0 when unlimited",
	})

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "scheduler",
			Name:      "evictions_total",
			Help:      "Total number of slot demotions",
		},
		[]string{"reason"},
	)

	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "scheduler",
		Name:      "loads_total",
		Help:      "Total number of workload materializations",
	})

	exhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "inferd",
		Subsystem: "scheduler",
		Name:      "exhausted_total",
		Help:      "Total acquisitions rejected because the budget could not be met",
	})
)

func init() {
	prometheus.MustRegister(usedGauge, budgetGauge, evictionsTotal, loadsTotal, exhaustedTotal)
}
