package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 200 * time.Millisecond,
	LongBackoff:    2 * time.Second,
	MaxBackoff:     2 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis not reachable yet, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// NewClient parses redisURL, installs the metrics hook when m is non-nil and
// waits until the server answers PING. The circuit breaker is armed only after
// that first PING so startup retries cannot trip it.
func NewClient(ctx context.Context, redisURL string, m *metrics.RedisMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(&MetricsHook{metrics: m})
	}

	err = retry.DoVoid(ctx, connectPolicy, classifyPing, func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rdb.AddHook(NewBreakerHook(m))
	return rdb, nil
}

// classifyPing gives up early on credential errors, which no retry can fix,
// and waits longer while Redis is still loading its dataset.
func classifyPing(err error) retry.Action {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return retry.Stop
	case strings.HasPrefix(msg, "LOADING"):
		return retry.After
	default:
		return retry.Retry
	}
}
