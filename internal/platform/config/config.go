package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	BackendURL            string        `env:"BACKEND_URL"`
	BackendRequestTimeout time.Duration `env:"BACKEND_REQUEST_TIMEOUT" default:"2m"`

	SessionStore         string        `env:"SESSION_STORE" default:"memory"`
	RedisURL             string        `env:"REDIS_URL"`
	SessionIdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"60m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	MaxUploadSize   string   `env:"MAX_UPLOAD_SIZE" default:"50M"`
	UploadRateLimit float64  `env:"UPLOAD_RATE_LIMIT" default:"2"`
	UploadRateBurst int      `env:"UPLOAD_RATE_BURST" default:"10"`
	CORSOrigins     []string `env:"CORS_ORIGINS" default:"http://localhost:5173"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", cfg.BackendURL)
	}

	switch cfg.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.SessionStore)
	}

	if cfg.SessionIdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}
	if cfg.SessionSweepInterval <= 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must be positive")
	}
	if cfg.UploadRateLimit <= 0 || cfg.UploadRateBurst <= 0 {
		return errors.New("UPLOAD_RATE_LIMIT and UPLOAD_RATE_BURST must be positive")
	}

	return nil
}
