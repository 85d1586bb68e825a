package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/fontsubset/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe, e.g. the font backend or Redis.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}

	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.runHealthChecks(c, ctx)
}

type checkResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type readinessResponse struct {
	Status         string                 `json:"status"`
	FailedChecks   []string               `json:"failed_checks,omitempty"`
	Checks         map[string]checkResult `json:"checks"`
	ActiveSessions *int                   `json:"active_sessions,omitempty"`
}

// runHealthChecks runs every dependency check and reports each one, so a
// degraded font backend and a degraded Redis show up together.
func (s *Server) runHealthChecks(c echo.Context, ctx context.Context) error {
	resp := readinessResponse{Status: "ready", Checks: make(map[string]checkResult, len(s.healthChecks))}

	for _, hc := range s.healthChecks {
		start := s.clock.Now()
		err := hc.Check(ctx)
		res := checkResult{Status: "ok", LatencyMS: float64(s.clock.Since(start).Microseconds()) / 1000}
		if err != nil {
			slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
			res.Status = "failed"
			res.Error = err.Error()
			resp.Status = "unhealthy"
			resp.FailedChecks = append(resp.FailedChecks, hc.Name)
		}
		resp.Checks[hc.Name] = res
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	} else if n, err := s.app.ActiveSessions(ctx); err == nil {
		resp.ActiveSessions = &n
	}

	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
