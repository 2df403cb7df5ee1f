package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/api"
	"github.com/sells-group/homeswipe/internal/feed"
	"github.com/sells-group/homeswipe/internal/monitoring"
	"github.com/sells-group/homeswipe/internal/pipeline"
	"github.com/sells-group/homeswipe/internal/store"
)

var (
	servePort       int
	serveNoSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feed API and run scheduled scrape passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var sched *pipeline.Scheduler
		if !serveNoSchedule {
			coord, err := buildCoordinator(st)
			if err != nil {
				return err
			}
			sched = pipeline.NewScheduler(coord, cfg.Scrape.ScheduleInterval)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServices(ctx, srv, sched, buildChecker(st))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSchedule, "no-schedule", false, "serve the API without running scrape passes")
	rootCmd.AddCommand(serveCmd)
}

func buildRouter(st store.Store) http.Handler {
	return api.NewRouter(api.Deps{
		Feed:           feed.NewService(st),
		Alerts:         alert.NewService(st),
		Runs:           st,
		Health:         st,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
}

// buildChecker returns nil when no webhook is configured.
func buildChecker(st store.Store) *monitoring.Checker {
	if cfg.Monitoring.WebhookURL == "" {
		return nil
	}
	return monitoring.NewChecker(
		monitoring.NewCollector(st),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// runServices runs the HTTP server, the scheduler and the checker until ctx
// is cancelled or one of them fails, then shuts the server down.
func runServices(ctx context.Context, srv *http.Server, sched *pipeline.Scheduler, checker *monitoring.Checker) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}
	if checker != nil {
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}
