package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/api"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve hybrid search over HTTP",
		Long: `Serve GET / (health) and GET /search?query=&top_n=&document_type= over HTTP.

The server stops gracefully on SIGINT or SIGTERM.`,
		Annotations: map[string]string{annotationStderrLogs: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default: server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default: server.port)")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg := root.cfg
	if !root.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newSearchApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	router, err := api.NewRouter(app.engine, api.RouterConfig{
		ServiceName: cfg.Server.ServiceName,
		DefaultTopN: cfg.Search.DefaultTopN,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	return api.NewServer(addr, router, cfg.Server.ShutdownTimeout).ListenAndServe(ctx)
}
