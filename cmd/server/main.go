package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/p-n-ai/aptis-ingest/internal/audit"
	"github.com/p-n-ai/aptis-ingest/internal/bank"
	"github.com/p-n-ai/aptis-ingest/internal/httpapi"
	"github.com/p-n-ai/aptis-ingest/internal/ingest"
	"github.com/p-n-ai/aptis-ingest/internal/platform/cache"
	"github.com/p-n-ai/aptis-ingest/internal/platform/config"
	"github.com/p-n-ai/aptis-ingest/internal/platform/database"
	"github.com/p-n-ai/aptis-ingest/internal/questionset"
	"github.com/p-n-ai/aptis-ingest/internal/session"
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	levels := questionset.DefaultLevels()
	if cfg.LevelsPath != "" {
		levels, err = questionset.LoadLevels(cfg.LevelsPath)
		if err != nil {
			slog.Error("failed to load level table", "path", cfg.LevelsPath, "error", err)
			os.Exit(1)
		}
	}

	var checks []readiness

	var store session.Store = session.NewMemoryStore()
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		store = session.NewRedisStore(c.Client, cfg.Session.TTL)
		checks = append(checks, readiness{"cache", c.Ready})
		slog.Info("sessions stored in redis", "ttl", cfg.Session.TTL)
	} else {
		slog.Warn("APTIS_CACHE_URL not set, sessions are kept in memory")
	}

	var events audit.EventLogger = audit.NopEventLogger{}
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger := audit.NewPostgresEventLogger(db.Pool)
		if err := logger.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create audit table", "error", err)
			os.Exit(1)
		}
		events = logger
		checks = append(checks, readiness{"database", db.Ready})
	} else {
		slog.Warn("APTIS_DATABASE_URL not set, audit events are discarded")
	}

	client := bank.NewClient(
		bank.WithBaseURL(cfg.Backend.URL),
		bank.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
	)
	publisher, err := bank.NewPublisher(client)
	if err != nil {
		slog.Error("failed to build publisher", "error", err)
		os.Exit(1)
	}

	api := httpapi.New(ingest.NewPipeline(levels), store, publisher, events, httpapi.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Dedupe:         cfg.Session.Dedupe,
	})

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     newRouter(api.Routes(), checks...),
		ReadTimeout: 60 * time.Second,
		// Publishing waits on the backend, which may itself take its full timeout.
		WriteTimeout: cfg.Backend.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "backend", cfg.Backend.URL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// readiness is a dependency checked by /readyz.
type readiness struct {
	name  string
	check func(context.Context) error
}

// newRouter mounts the API next to the health check endpoints.
func newRouter(api http.Handler, checks ...readiness) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(checks))
	r.Mount("/", api)
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks []readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				failed[c.name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			slog.Warn("not ready", "failed", failed)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
