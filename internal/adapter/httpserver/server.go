package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/app"
	"github.com/pscheid92/fontsubset/internal/charset"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/pscheid92/fontsubset/internal/platform/config"
)

type appService interface {
	Upload(ctx context.Context, sessionID string, file domain.FontFile) (*domain.FontRecord, error)
	UploadBatch(ctx context.Context, sessionID string, files []domain.FontFile, scope app.CallScope) ([]domain.FontRecord, error)
	Fonts(ctx context.Context, sessionID string) ([]domain.FontRecord, error)
	Resolve(ctx context.Context, sessionID string, sel charset.Selection) (string, error)
	Subset(ctx context.Context, p app.SubsetParams) (*domain.SubsetRecord, error)
	Export(ctx context.Context, p app.ExportParams) ([]domain.ExportedArtifact, error)
	Download(ctx context.Context, sessionID, filename string) (*domain.Download, error)
	DownloadAll(ctx context.Context, sessionID string) (*domain.Download, error)
	Reap(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) (int, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    appService
	clock  clockwork.Clock

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

// WithMetrics instruments every request and serves reg's metrics on /metrics.
func WithMetrics(m *metrics.HTTPMetrics, handler http.Handler) Option {
	return func(s *Server) {
		s.httpMetrics = m
		s.metricsHandler = handler
	}
}

// WithHealthChecks sets the checks run by the startup and readiness probes.
func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = checks }
}

func NewServer(cfg *config.Config, app appService, clock clockwork.Clock, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		clock:     clock,
		startTime: clock.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// backendContext bounds one request's pipeline call by BACKEND_REQUEST_TIMEOUT.
func (s *Server) backendContext(c echo.Context) (context.Context, context.CancelFunc) {
	return s.perBackendCall(c.Request().Context())
}

// perBackendCall bounds a single backend round trip by BACKEND_REQUEST_TIMEOUT.
func (s *Server) perBackendCall(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.BackendRequestTimeout)
}
