package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pscheid92/fontsubset/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const sweepLockKey = "fontsubset:sweep:leader"

// acquireScript renews the lease when we already hold it and otherwise takes
// it only if nobody does.
var acquireScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLock is a Redis lease that elects one sweeping instance. The lease
// expires after ttl, so a crashed leader is replaced on the next tick after that.
type SweepLock struct {
	rdb        *goredis.Client
	instanceID string
	ttl        time.Duration
}

var _ domain.SweepLock = (*SweepLock)(nil)

// NewSweepLock creates a lock for instanceID. ttl should exceed the sweep
// interval so the leader keeps its lease between ticks.
func NewSweepLock(rdb *goredis.Client, instanceID string, ttl time.Duration) *SweepLock {
	return &SweepLock{rdb: rdb, instanceID: instanceID, ttl: ttl}
}

func (l *SweepLock) TryAcquire(ctx context.Context) (bool, error) {
	n, err := acquireScript.Run(ctx, l.rdb, []string{sweepLockKey}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	return n == 1, nil
}

func (l *SweepLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{sweepLockKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}
