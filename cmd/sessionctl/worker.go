package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tieredsession/core/health"
	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/integration/metrics/prometheus"
)

const (
	readinessTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func newWorkerCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Apply deferred writes and serve metrics and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.settings.MetricsAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", "", "listen address for /metrics and /health (default from METRICS_ADDR)")
	return cmd
}

func (a *app) opsHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", prometheus.Handler(a.metrics))
	r.Route("/health", func(r chi.Router) {
		r.Method(http.MethodGet, "/live", health.Liveness())
		r.Method(http.MethodGet, "/ready", health.Readiness(a.log, readinessTimeout, a.checks...))
	})
	return r
}

// serve blocks until ctx ends, running the deferred queue when one is
// configured next to the ops server.
func (a *app) serve(ctx context.Context) error {
	log := a.log.With(logger.Component("worker"))
	srv := &http.Server{
		Addr:              a.settings.MetricsAddr,
		Handler:           a.opsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	if a.queue != nil {
		eg.Go(func() error { return a.queue.Run(ctx) })
	}

	eg.Go(func() error {
		log.InfoContext(ctx, "ops server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	log.InfoContext(context.Background(), "worker stopped")
	return err
}
