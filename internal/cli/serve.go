package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acn-rai/rai-memory/logger"
	"github.com/acn-rai/rai-memory/stream"
)

const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	addr string
}

// NewServeCommand creates the "serve" command.
func NewServeCommand(root *rootFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Stream memory graph events over WebSocket",
		Long: `Start every component and serve the event stream until interrupted.

Endpoints:
  ws://<addr>/events   memory graph events
  http://<addr>/status component statuses
  http://<addr>/health component health

Examples:
  raimemory serve
  raimemory serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, flags)
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", "", "Listen address (overrides stream.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootFlags, flags *serveFlags) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Stream.Addr = flags.addr
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	srv := stream.New(cfg.Stream, app.Graph, app.Registry)
	if err := app.Registry.Register(srv); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		_ = app.Stop(context.WithoutCancel(ctx))
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return app.Stop(shutdownCtx)
}
