package metrics

import "github.com/prometheus/client_golang/prometheus"

// BackendMetrics holds Prometheus metrics for calls to the font backend.
type BackendMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	CircuitBreakerState prometheus.Gauge
	CircuitTransitions  *prometheus.CounterVec
}

// NewBackendMetrics creates and registers backend client metrics on the given registry.
func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	m := &BackendMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend requests, by operation and outcome.",
		}, []string{"operation", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend request duration in seconds, by operation.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		CircuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions, by new state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.CircuitBreakerState, m.CircuitTransitions)
	return m
}
