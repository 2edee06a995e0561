package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/toolcrib/internal/container"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) (err error) {
	a.logger.Info("Starting toolcrib",
		zap.String("driver", a.cfg.Database.Driver),
		zap.Int("port", a.cfg.Server.Port))

	c, err := container.NewContainer(a.cfg, a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	srv, err := c.NewHTTPServer()
	if err != nil {
		return err
	}

	// Returns after ctx is cancelled and the server has drained.
	if err := srv.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("Server exited successfully")
	return nil
}
