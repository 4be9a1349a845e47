package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/profmatch/internal/adapters/http/api"
	"github.com/okian/profmatch/internal/adapters/http/swagger"
	app "github.com/okian/profmatch/internal/app"
	"github.com/okian/profmatch/pkg/logger"
	"github.com/okian/profmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var skipInitial bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest run over HTTP",
		Long: `serve reconciles once at startup (unless --skip-initial) and then serves
lookups, residual listings, Prometheus metrics and POST /reconcile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.Get()

			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			if !skipInitial {
				if _, err := svc.Reconcile(ctx); err != nil {
					log.Warn(ctx, "initial reconcile failed; serving without a run", logger.Error(err))
				}
			}

			go startServiceMetricsUpdater(ctx, svc)

			srv := &http.Server{
				Addr:              c.cfg.Addr,
				Handler:           newMux(svc),
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info(ctx, "starting HTTP server", logger.String("addr", c.cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			log.Info(ctx, "shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			log.Info(ctx, "server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "do not reconcile before serving")
	return cmd
}

// newMux registers the API and docs routes.
func newMux(svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc).Register(mux)
	return mux
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if n, ok := stats["unmatchedRatings"].(int); ok {
		metrics.UpdateUnmatched("ratings", n)
	}
	if n, ok := stats["unmatchedReviews"].(int); ok {
		metrics.UpdateUnmatched("reviews", n)
	}
}
