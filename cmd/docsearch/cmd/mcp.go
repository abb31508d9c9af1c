package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/logging"
	"github.com/pankamp3004/Documents-Search-Project/internal/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search tool over MCP stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the "search" tool.

stdout carries JSON-RPC only; logs go to the log file.`,
		Annotations: map[string]string{annotationStdio: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cleanup, err := logging.SetupStdio(root.cfg.LoggingConfig(root.debug))
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			root.loggingCleanup = cleanup

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newSearchApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			srv, err := mcp.NewServer(app.engine, root.cfg.Search.DefaultTopN)
			if err != nil {
				return err
			}
			return srv.Serve(ctx, "stdio")
		},
	}
}
