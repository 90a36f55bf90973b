package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"terrarisk/internal/gateway/handler"
	"terrarisk/internal/gateway/server"
	"terrarisk/internal/scenario"
)

var serveFlags struct {
	port string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over Connect (HTTP/1.1 and h2c)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", "Listen address (default: $PORT or :8000)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	svc, cfg, err := newService(ctx, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	catalog, err := scenario.Load()
	if err != nil {
		return err
	}
	mux := server.NewMux(
		handler.NewAnalysisHandler(svc, catalog, logger),
		handler.NewHealthHandler(cfg.ModeLabel()),
		handler.NewRunLogHandler(svc.Journal()),
		handler.NewRunEventsHandler(svc.Events(), logger),
	)
	port := cfg.Port
	if serveFlags.port != "" {
		port = serveFlags.port
	}
	srv := server.New(port, mux, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down API server")
	return srv.Shutdown(shutdownCtx)
}
