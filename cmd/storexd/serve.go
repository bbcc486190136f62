package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/comalice/storex/internal/config"
	"github.com/comalice/storex/internal/demo"
	"github.com/comalice/storex/internal/production"
	"github.com/comalice/storex/internal/source"
	"github.com/comalice/storex/serial"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo store over HTTP",
		Long: `Serve the demo store. Routes:

  GET  /state     current state (JSON)
  POST /dispatch  dispatch a JSON action
  GET  /history   recorded dispatch history (YAML)
  GET  /metrics   Prometheus metrics
  GET  /ws        WebSocket state stream
  GET  /healthz   liveness`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			logger, err := config.NewLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// app wires the demo store to its runner and HTTP surfaces.
type app struct {
	stack    *demo.Stack
	runner   *serial.Runner[demo.State]
	stream   *production.StateStream[demo.State]
	registry *prometheus.Registry
	logger   *slog.Logger
	detach   func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stack, err := demo.NewStore(demo.Options{
		Logger:      logger,
		HistorySize: cfg.HistorySize,
		Namespace:   cfg.Namespace,
		Registry:    registry,
	})
	if err != nil {
		return nil, err
	}

	runner := serial.New(stack.Store, serial.Config{QueueSize: cfg.QueueSize, Logger: logger})
	// The runner outlives ctx so in-flight requests drain during shutdown.
	if err := runner.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}

	stream := production.NewStateStream[demo.State](logger)
	detach, err := runner.Observe(ctx, stream)
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("attach state stream: %w", err)
	}

	return &app{
		stack:    stack,
		runner:   runner,
		stream:   stream,
		registry: registry,
		logger:   logger,
		detach:   detach,
	}, nil
}

func (a *app) close() {
	if err := a.detach(); err != nil && !errors.Is(err, serial.ErrNotRunning) {
		a.logger.Warn("detach state stream", slog.String("error", err.Error()))
	}
	_ = a.stream.Close()
	_ = a.runner.Stop()
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.TickInterval > 0 {
		ticker := source.NewTickerSource("TICK", cfg.TickInterval)
		defer ticker.Stop()
		go source.Pump(ctx, ticker, a.runner, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storexd listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not closed by Shutdown.
	_ = a.stream.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
