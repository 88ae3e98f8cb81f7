package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlens/internal/cache"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/view"
)

// app carries the resolved configuration and shared collaborators for one
// command invocation.
type app struct {
	cfg    Config
	logger *slog.Logger
	getenv func(string) string
}

func newRootCmd() *cobra.Command {
	a := &app{getenv: os.Getenv}

	root := &cobra.Command{
		Use:          "flowlens",
		Short:        "Lay out n8n workflows and aggregate their execution metrics",
		Long:         `flowlens turns n8n workflow exports and their execution history into a positioned, classified graph with per-node runtime statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "settings file (default: ~/.flowlens/settings.json)")
	pf.String("db-path", "", "database path (default: ~/.flowlens/flowlens.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		newLayoutCmd(a),
		newMetricsCmd(a),
		newDiagramCmd(a),
		newImportCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = settingsPath()
	}
	cfg, err := loadConfig(path, a.getenv)
	if err != nil {
		return err
	}
	cfg.applyFlags(cmd.Flags())
	if err := cfg.validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

// openStore opens and migrates the configured database.
func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// openCache returns Redis when redis_addr is set, otherwise an in-process map.
func (a *app) openCache(ctx context.Context) (cache.Cache, func(), error) {
	ttl, err := a.cfg.cacheTTL()
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.RedisAddr == "" {
		return cache.NewMemory(ttl), func() {}, nil
	}

	r := cache.NewRedis(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, cache.WithTTL(ttl))
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, nil, err
	}
	a.logger.Info("using redis view cache", "addr", a.cfg.RedisAddr)
	return r, func() { _ = r.Close() }, nil
}

// newViews builds a view service with the expression engines enabled.
func (a *app) newViews(src view.Source, opts ...view.Option) (*view.Service, error) {
	filters, err := expressions.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("init expression engines: %w", err)
	}
	opts = append([]view.Option{view.WithLogger(a.logger)}, opts...)
	return view.NewService(src, filters, opts...), nil
}
