package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "fontsubset:session:"
	accessedIndexKey = "fontsubset:sessions:accessed"

	maxTxAttempts = 16
)

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// SessionStore keeps each session as one JSON document with a sorted-set index
// of last-access times. Writers use WATCH/MULTI so concurrent updates to the
// same session are applied one after another.
//
// Session keys expire after ttl without access. The index entry of an expired
// key lingers until the next sweep removes it.
type SessionStore struct {
	rdb     *goredis.Client
	clock   clockwork.Clock
	ttl     time.Duration
	metrics *metrics.RedisMetrics
}

var _ domain.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *goredis.Client, clock clockwork.Clock, ttl time.Duration, m *metrics.RedisMetrics) *SessionStore {
	return &SessionStore{rdb: rdb, clock: clock, ttl: ttl, metrics: m}
}

// update loads the session, applies fn and writes the result back in one
// optimistic transaction. With create set, a missing session starts empty.
func (s *SessionStore) update(ctx context.Context, id string, create bool, fn func(*domain.Session)) (*domain.Session, error) {
	key := sessionKey(id)

	for i := 0; i < maxTxAttempts; i++ {
		var out *domain.Session
		err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			sess, err := load(ctx, tx, key)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound) && create:
				sess = &domain.Session{ID: id, CreatedAt: s.clock.Now()}
			case err != nil:
				return err
			}

			fn(sess)
			sess.LastAccessed = s.clock.Now()

			data, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("failed to marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				pipe.ZAdd(ctx, accessedIndexKey, goredis.Z{
					Score:  float64(sess.LastAccessed.UnixMilli()),
					Member: id,
				})
				return nil
			})
			if err != nil {
				return err
			}
			out = sess
			return nil
		}, key)

		if errors.Is(err, goredis.TxFailedErr) {
			if s.metrics != nil {
				s.metrics.TxConflicts.Inc()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("session %s: gave up after %d conflicting updates", id, maxTxAttempts)
}

func load(ctx context.Context, c goredis.Cmdable, key string) (*domain.Session, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) CreateOrGet(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	return s.update(ctx, id, true, func(*domain.Session) {})
}

func (s *SessionStore) AppendFont(ctx context.Context, id string, rec domain.FontRecord) (string, error) {
	create := false
	if id == "" {
		id = uuid.NewString()
		create = true
	}
	rec.SessionID = id
	_, err := s.update(ctx, id, create, func(sess *domain.Session) {
		sess.Fonts = append(sess.Fonts, rec)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SessionStore) SetSubset(ctx context.Context, id string, rec domain.SubsetRecord) error {
	rec.SessionID = id
	_, err := s.update(ctx, id, false, func(sess *domain.Session) {
		sess.Subset = &rec
	})
	return err
}

func (s *SessionStore) SetArtifacts(ctx context.Context, id string, artifacts []domain.ExportedArtifact) error {
	_, err := s.update(ctx, id, false, func(sess *domain.Session) {
		sess.Artifacts = artifacts
	})
	return err
}

// Get refreshes the session's idle timer.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.update(ctx, id, false, func(*domain.Session) {})
}

func (s *SessionStore) Remove(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, accessedIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

func (s *SessionStore) ListIdle(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	cutoff := s.clock.Now().Add(-maxIdle).UnixMilli()
	ids, err := s.rdb.ZRangeByScore(ctx, accessedIndexKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *SessionStore) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, accessedIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Ping is used by the readiness probe.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
