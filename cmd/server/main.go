package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/fontsubset/internal/adapter/fontbackend"
	"github.com/pscheid92/fontsubset/internal/adapter/httpserver"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/adapter/redis"
	"github.com/pscheid92/fontsubset/internal/app"
	"github.com/pscheid92/fontsubset/internal/domain"
	"github.com/pscheid92/fontsubset/internal/platform/config"
	"github.com/pscheid92/fontsubset/internal/platform/logging"
	"github.com/pscheid92/fontsubset/internal/platform/version"
	"github.com/pscheid92/fontsubset/internal/session"
	goredis "github.com/redis/go-redis/v9"
)

func runGracefulShutdown(srv *httpserver.Server, appSvc *app.Service) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		appSvc.Stop()
		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupBackend(cfg *config.Config, m *metrics.BackendMetrics) *fontbackend.Client {
	client, err := fontbackend.NewClient(cfg.BackendURL, fontbackend.WithMetrics(m))
	if err != nil {
		slog.Error("Failed to create font backend client", "error", err)
		os.Exit(1)
	}
	return client
}

type stores struct {
	store     domain.SessionStore
	sweepLock domain.SweepLock
	checks    []httpserver.HealthCheck
	close     func()
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()
}

// setupStore picks the session store. Redis sessions outlive the idle
// timeout by two sweep intervals so the reaper always sees them first.
func setupStore(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) stores {
	if cfg.SessionStore != config.StoreRedis {
		slog.Info("Using in-memory session store")
		return stores{store: session.NewInMemoryStore(clock), close: func() {}}
	}

	m := metrics.NewRedisMetrics(reg)
	rdb := setupRedis(context.Background(), cfg, m)
	ttl := cfg.SessionIdleTimeout + 2*cfg.SessionSweepInterval
	store := redis.NewSessionStore(rdb, clock, ttl, m)
	slog.Info("Using Redis session store", "ttl", ttl)

	return stores{
		store:     store,
		sweepLock: redis.NewSweepLock(rdb, instanceID(), 2*cfg.SessionSweepInterval),
		checks:    []httpserver.HealthCheck{{Name: "redis", Check: store.Ping}},
		close:     func() { _ = rdb.Close() },
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "build", version.Get().String())

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	backendMetrics := metrics.NewBackendMetrics(reg)
	pipelineMetrics := metrics.NewPipelineMetrics(reg)

	backend := setupBackend(cfg, backendMetrics)

	st := setupStore(cfg, reg, clock)
	defer st.close()

	appOpts := []app.Option{app.WithMetrics(pipelineMetrics)}
	if st.sweepLock != nil {
		appOpts = append(appOpts, app.WithSweepLock(st.sweepLock))
	}
	appSvc := app.NewService(st.store, backend, clock, appOpts...)
	appSvc.StartExpiry(cfg.SessionIdleTimeout, cfg.SessionSweepInterval)

	checks := append([]httpserver.HealthCheck{{Name: "font_backend", Check: backend.Ping}}, st.checks...)
	srv := httpserver.NewServer(cfg, appSvc, clock,
		httpserver.WithMetrics(httpMetrics, metrics.Handler(reg)),
		httpserver.WithHealthChecks(checks...),
	)

	done := runGracefulShutdown(srv, appSvc)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
