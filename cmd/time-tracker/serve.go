package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"time-tracker/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and keep the view reconciled until interrupted",
		Long: `Run the HTTP API. On SIGINT/SIGTERM the server stops accepting requests
and every running session is stopped before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.HTTP.Addr
			}
			return c.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config http.addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context, addr string) error {
	application, err := app.New(ctx, c.log, c.cfg)
	if err != nil {
		return err
	}
	application.StartView(ctx)

	srv := application.HTTPServer(addr)
	serveErr := make(chan error, 1)
	go func() {
		c.log.Info("http server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		c.log.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			c.log.Error("http server failed", slog.String("error", err.Error()))
			runErr = err
		}
	}

	// The signal context is already done; give the exit sequence its own budget.
	shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Shutdown.Timeout)
	defer cancel()
	stopped, err := application.Shutdown(shCtx)
	for _, l := range stopped {
		c.log.Info("session stopped on exit", slog.Int64("line_id", l.ID), slog.Int64("elapsed_s", l.ElapsedSeconds))
	}
	return errors.Join(runErr, err)
}
