package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"billtrack/internal/cli"
	apphttp "billtrack/internal/http"
	"billtrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var noWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the JSON HTTP API. When AMQP is configured the reminder worker runs in
the same process unless --no-worker is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}

			_, app, err := g.build(cmd.Context(), cfg, logger, nil, true)
			if err != nil {
				return err
			}
			if cfg.ListCacheTTL > 0 {
				app.Caches.StartCleanup(cfg.ListCacheTTL)
			}

			srv := apphttp.NewServer(":"+cfg.Port, app.Service, logger,
				apphttp.WithMetrics(app.Metrics),
				apphttp.WithRateLimit(cfg.RateLimitPerMinute),
				apphttp.WithReminderSettings(app.Reminders),
			)

			ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
			})

			grp, gctx := errgroup.WithContext(ctx)
			grp.Go(func() error {
				logger.Info("Starting billtrack server", "port", cfg.Port, "backend", cfg.DataBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			if app.Publisher != nil && !noWorker {
				w := worker.NewReminderWorker(app.Service, app.Reminders, cfg.ReminderInterval, logger)
				grp.Go(func() error { return w.Run(gctx) })
			}

			err = grp.Wait()
			if err == nil {
				// Only a signal stops a healthy server; wait for its cleanup.
				<-done
			}
			if cerr := app.Close(); cerr != nil {
				logger.Warn("Close failed", "error", cerr)
			}
			logger.Info("Server stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&noWorker, "no-worker", false, "Do not run the reminder worker in this process")
	return cmd
}
