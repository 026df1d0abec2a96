package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the runner's prometheus collectors.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	runFailures *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics registers the runner collectors with the given registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolsim",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Number of successful kernel runs.",
		}, []string{"kernel"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poolsim",
			Subsystem: "engine",
			Name:      "run_failures_total",
			Help:      "Number of kernel runs that returned an error.",
		}, []string{"kernel"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "poolsim",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Wall time of kernel runs.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"kernel"}),
	}

	registry.MustRegister(m.runsTotal, m.runFailures, m.runDuration)
	return m
}
