package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/htpot/collector/internal/core/config"
	"github.com/htpot/collector/internal/core/health"
	middleware "github.com/htpot/collector/internal/core/middleware"
	"github.com/htpot/collector/internal/ingest"
	"github.com/htpot/collector/internal/query"
)

// Deps collects the handlers the HTTP surface dispatches to. ingest.Handler
// and query.Handlers are built by the caller with their own storage,
// scoring, and enrichment dependencies already wired.
type Deps struct {
	Ingest        *ingest.Handler
	Query         *query.Handlers
	HealthReport  health.Reporter
}

// Run sets up the collector's HTTP surface and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/health", health.Health(deps.HealthReport))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/ingest", deps.Ingest.ServeHTTP)
	r.Post("/log", deps.Ingest.ServeHTTP)

	r.Get("/events", deps.Query.LiveEvents())
	r.Get("/stats", deps.Query.Stats())
	r.Get("/analytics", deps.Query.Analytics())
	r.Get("/map", deps.Query.MapPoints())
	r.Get("/ml-insights", deps.Query.MLInsights())
	r.Get("/alerts", deps.Query.Alerts())
	r.Get("/investigate/{source}", deps.Query.Investigate())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
