package fontbackend

import (
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
)

// newBreaker builds the circuit breaker guarding backend calls:
// - WithFailureRateThreshold: 60% failure rate, min 5 requests, 30s rolling window
// - WithDelay: 15s before transitioning from open to half-open
// - WithSuccessThreshold: 1 successful request in half-open to close
//
// An open breaker fails calls immediately. Nothing is retried.
func newBreaker(m *metrics.BackendMetrics) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 30*time.Second).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "font_backend",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitTransitions.WithLabelValues(e.NewState.String()).Inc()
				m.CircuitBreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
