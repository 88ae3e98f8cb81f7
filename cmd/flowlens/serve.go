package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlens/internal/api"
	"github.com/rendis/flowlens/internal/cache"
	"github.com/rendis/flowlens/internal/scheduler"
	"github.com/rendis/flowlens/internal/streaming"
	"github.com/rendis/flowlens/internal/view"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Serves stored workflows, their computed views and Prometheus metrics over HTTP, refreshing cached views on the refresh_cron schedule.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	f := cmd.Flags()
	f.String("listen-addr", "", "TCP listen address (default :4200)")
	f.String("redis-addr", "", "Redis address for the view cache (default: in-memory)")
	f.String("cache-ttl", "", "view cache TTL, e.g. 10m (0 disables expiry)")
	f.String("refresh-cron", "", `cron expression for background view refresh ("off" disables)`)
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	c, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	metrics := api.NewMetrics()
	views, err := a.newViews(st,
		view.WithCache(c),
		view.WithObserver(metrics.ObserveView),
	)
	if err != nil {
		return err
	}

	hub := streaming.NewMemoryHub()
	server, err := api.NewServer(api.Deps{
		Store:   st,
		Views:   views,
		Metrics: metrics,
		Events:  hub,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	if a.cfg.RefreshCron != "" && a.cfg.RefreshCron != "off" {
		sched, err := scheduler.NewScheduler(st, views, a.cfg.RefreshCron, a.logger)
		if err != nil {
			return err
		}
		sched.SetPublisher(hub)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	if mem, ok := c.(*cache.Memory); ok {
		if ttl, _ := a.cfg.cacheTTL(); ttl > 0 {
			go sweep(ctx, mem, ttl)
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr, "db", a.cfg.DBPath)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	// Event streams never go idle on their own.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
	}
	return nil
}

// sweep drops expired entries from the in-process cache once per TTL.
func sweep(ctx context.Context, mem *cache.Memory, ttl time.Duration) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mem.Sweep()
		}
	}
}
