package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/fontsubset/internal/platform/correlation"
)

const (
	reasonExplicit = "explicit"
	reasonIdle     = "idle"

	sweepTimeout   = 30 * time.Second
	releaseTimeout = 5 * time.Second
)

// Reap tears a session down. The backend is asked to drop its temporary files
// first; whatever it answers, the session is then removed locally. Concurrent
// reaps of the same session share one teardown.
func (s *Service) Reap(ctx context.Context, sessionID string) error {
	err := s.reap(ctx, sessionID, reasonExplicit)
	s.observe(opReap, err)
	return err
}

func (s *Service) reap(ctx context.Context, sessionID, reason string) error {
	_, err, _ := s.reapGroup.Do(sessionID, func() (any, error) {
		if err := s.backend.DeleteSession(ctx, sessionID); err != nil {
			slog.WarnContext(ctx, "Backend teardown failed, removing session locally anyway",
				"session_id", sessionID,
				"error", err,
			)
		}

		if err := s.store.Remove(ctx, sessionID); err != nil {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.SessionsReaped.WithLabelValues(reason).Inc()
		}
		slog.InfoContext(ctx, "Session reaped", "session_id", sessionID, "reason", reason)
		return nil, nil
	})
	return err
}

// ReapIdle tears down every session that has not been accessed for maxIdle
// and returns how many were removed.
func (s *Service) ReapIdle(ctx context.Context, maxIdle time.Duration) (int, error) {
	idle, err := s.store.ListIdle(ctx, maxIdle)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, id := range idle {
		if err := s.reap(ctx, id, reasonIdle); err != nil {
			slog.ErrorContext(ctx, "Failed to reap idle session", "session_id", id, "error", err)
			continue
		}
		reaped++
	}

	if s.metrics != nil {
		if n, err := s.store.Count(ctx); err == nil {
			s.metrics.ActiveSessions.Set(float64(n))
		}
	}
	return reaped, nil
}

// StartExpiry reaps sessions idle for longer than maxIdle every interval
// until Stop is called.
func (s *Service) StartExpiry(maxIdle, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	s.expiryWg.Add(1)
	go func() {
		defer s.expiryWg.Done()
		for {
			select {
			case <-ticker.Chan():
				s.sweep(maxIdle)
			case <-s.expiryStopCh:
				ticker.Stop()
				return
			}
		}
	}()
	slog.Info("Session expiry started", "max_idle", maxIdle, "interval", interval)
}

func (s *Service) sweep(maxIdle time.Duration) {
	ctx, cancel := context.WithTimeout(correlation.WithID(context.Background(), correlation.NewID()), sweepTimeout)
	defer cancel()

	if s.sweepLock != nil {
		leader, err := s.sweepLock.TryAcquire(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Skipping idle session sweep", "error", err)
			return
		}
		if !leader {
			slog.DebugContext(ctx, "Another instance owns the idle session sweep")
			return
		}
	}

	n, err := s.ReapIdle(ctx, maxIdle)
	if err != nil {
		slog.ErrorContext(ctx, "Idle session sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Idle sessions reaped", "count", n)
	}
}

// Stop stops the expiry timer, waits for an in-flight sweep to finish and
// hands the sweep lock to the next instance.
func (s *Service) Stop() {
	first := false
	s.stopOnce.Do(func() {
		close(s.expiryStopCh)
		first = true
	})
	s.expiryWg.Wait()

	if first && s.sweepLock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := s.sweepLock.Release(ctx); err != nil {
			slog.Warn("Failed to release sweep lock", "error", err)
		}
	}
}
