package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// BreakerHook fails Redis commands fast while Redis is unhealthy, so request
// handlers answer with an error instead of queueing on a dead connection pool.
// Misses, lost WATCH races and caller cancellation count as successes.
type BreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*BreakerHook)(nil)

// NewBreakerHook opens after 60% failures over at least 5 commands in 10s and
// probes again after 30s. m may be nil.
func NewBreakerHook(m *metrics.RedisMetrics) *BreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitBreakerState.Set(breakerStateValue(e.NewState))
			}
		}).
		Build()
	return &BreakerHook{cb: cb}
}

func breakerStateValue(state circuitbreaker.State) float64 {
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

func (h *BreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis dial: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		h.record(ctx, err)
		return conn, err
	}
}

func (h *BreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			err := fmt.Errorf("redis %s: %w", cmd.Name(), circuitbreaker.ErrOpen)
			cmd.SetErr(err)
			return err
		}
		err := next(ctx, cmd)
		h.record(ctx, err)
		return err
	}
}

func (h *BreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis pipeline: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		h.record(ctx, err)
		return err
	}
}

func (h *BreakerHook) record(ctx context.Context, err error) {
	switch {
	case err == nil, errors.Is(err, goredis.Nil), errors.Is(err, goredis.TxFailedErr):
		h.cb.RecordSuccess()
	case ctx.Err() != nil:
		// the caller gave up, which says nothing about Redis. The permit
		// must still be settled or a half-open breaker never admits another call.
		h.cb.RecordSuccess()
	default:
		h.cb.RecordError(err)
	}
}

// State reports the breaker state.
func (h *BreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
