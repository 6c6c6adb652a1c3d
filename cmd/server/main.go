package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphummel/engin_maint/internal/config"
	"github.com/tphummel/engin_maint/internal/db"
	"github.com/tphummel/engin_maint/internal/handlers"
	"github.com/tphummel/engin_maint/internal/logger"
	"github.com/tphummel/engin_maint/internal/metrics"
	"github.com/tphummel/engin_maint/internal/middleware"
	"github.com/tphummel/engin_maint/internal/schedule"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// newHandler wires every route: public health, metrics and docs endpoints,
// the authenticated API, and request logging around all of it.
func newHandler(cfg config.Config, database *db.DB, log *slog.Logger) http.Handler {
	planner := &schedule.Planner{Source: database, Policy: cfg.Policy()}
	h := &handlers.Handler{DB: database, Planner: planner, Version: version, Commit: commit}

	reg := prometheus.NewRegistry()
	metrics.Register(reg, database, planner)

	mux := http.NewServeMux()

	// Health check, metrics and API docs need no auth
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", metrics.Handler(reg))
	mux.HandleFunc("GET /openapi.yaml", handlers.OpenAPISpec)
	mux.HandleFunc("GET /docs", handlers.Docs)

	h.Register(mux, cfg.APIToken)

	skip := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	return middleware.RequestLogger(log, skip, mux)
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(log)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error("database close error", "error", err)
		}
	}()

	if err := database.SyncGammes(cfg.Catalog()); err != nil {
		return fmt.Errorf("seed gammes: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           newHandler(cfg, database, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.Port, "version", version, "policy", string(cfg.Policy().Kind))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
