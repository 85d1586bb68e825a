package app

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Pipeline operation names, used as metric labels.
const (
	opUpload      = "upload"
	opResolve     = "resolve"
	opSubset      = "subset"
	opExport      = "export"
	opDownload    = "download"
	opDownloadAll = "download_all"
	opReap        = "reap"
)

// Service is the application layer. It is the only component that talks to
// both the session store and the font backend.
type Service struct {
	store     domain.SessionStore
	backend   domain.FontBackend
	clock     clockwork.Clock
	metrics   *metrics.PipelineMetrics
	reapGroup singleflight.Group
	sweepLock domain.SweepLock

	expiryStopCh chan struct{}
	stopOnce     sync.Once
	expiryWg     sync.WaitGroup
}

type Option func(*Service)

// WithMetrics records pipeline outcomes on m.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSweepLock makes the expiry loop sweep only while this instance holds l.
func WithSweepLock(l domain.SweepLock) Option {
	return func(s *Service) { s.sweepLock = l }
}

// NewService creates the application layer service.
func NewService(store domain.SessionStore, backend domain.FontBackend, clock clockwork.Clock, opts ...Option) *Service {
	s := &Service{
		store:        store,
		backend:      backend,
		clock:        clock,
		expiryStopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the current snapshot of a session.
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// Fonts lists the fonts of a session in upload order.
func (s *Service) Fonts(ctx context.Context, sessionID string) ([]domain.FontRecord, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Fonts, nil
}

// ActiveSessions counts the live sessions in the store.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var be *domain.BackendError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &be):
		return "backend_error"
	default:
		return "error"
	}
}
