package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-capture/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the capture API over HTTP",
		Long: `Start the HTTP API:

  POST /api/v1/turns         submit a conversation turn
  GET  /api/v1/records/:id   fetch a record (?versions=true for history)
  GET  /health               liveness
  GET  /metrics              Prometheus metrics`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := server.New(a.engine, a.store, slog.Default().With("component", "http"), server.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
