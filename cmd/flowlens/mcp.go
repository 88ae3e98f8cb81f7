package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlens/internal/view"
	flowmcp "github.com/rendis/flowlens/pkg/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the flowlens tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

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

			views, err := a.newViews(st, view.WithCache(c))
			if err != nil {
				return err
			}

			a.logger.Info("mcp server starting", "db", a.cfg.DBPath)
			return flowmcp.NewServer(flowmcp.ServerDeps{
				Store:  st,
				Views:  views,
				Logger: a.logger,
			}).Serve(ctx)
		},
	}
}
