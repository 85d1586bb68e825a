// Command session-sweep reaps idle sessions from a shared Redis session store
// once and exits. It tears down the backend workspace of every session idle
// longer than -max-idle, the same way the server's expiry loop does.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontsubset/internal/adapter/fontbackend"
	"github.com/pscheid92/fontsubset/internal/adapter/redis"
	"github.com/pscheid92/fontsubset/internal/app"
	"github.com/pscheid92/fontsubset/internal/platform/logging"
)

func main() {
	var (
		redisURL   = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		backendURL = flag.String("backend", os.Getenv("BACKEND_URL"), "Font backend URL (or set BACKEND_URL env)")
		maxIdle    = flag.Duration("max-idle", 60*time.Minute, "Reap sessions idle for longer than this")
		timeout    = flag.Duration("timeout", 5*time.Minute, "Overall deadline for the sweep")
		dryRun     = flag.Bool("dry-run", false, "Only list idle sessions, reap nothing")
		verbose    = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}
	if *backendURL == "" && !*dryRun {
		log.Fatal("Backend URL required (--backend or BACKEND_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	clock := clockwork.NewRealClock()
	store := redis.NewSessionStore(rdb, clock, *maxIdle, nil)

	if *dryRun {
		ids, err := store.ListIdle(ctx, *maxIdle)
		if err != nil {
			log.Fatalf("Failed to list idle sessions: %v", err)
		}
		for _, id := range ids {
			slog.Info("Idle session", "session_id", id)
		}
		slog.Info("Dry run complete", "idle", len(ids), "max_idle", *maxIdle)
		return
	}

	backend, err := fontbackend.NewClient(*backendURL)
	if err != nil {
		log.Fatalf("Failed to create backend client: %v", err)
	}

	start := clock.Now()
	reaped, err := app.NewService(store, backend, clock).ReapIdle(ctx, *maxIdle)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	slog.Info("Sweep complete",
		"reaped", reaped,
		"max_idle", *maxIdle,
		"duration_ms", clock.Since(start).Milliseconds())
}

// sanitizeURL hides the password of a Redis URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
