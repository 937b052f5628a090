// Command waterwatch serves pond classification, time series, forecasts
// and map tiles over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/waterwatch-service/internal/adapter/http"
	"github.com/couchcryptid/waterwatch-service/internal/app"
	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	svc, closePublisher, err := app.Build(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// The write deadline leaves room for the error payload after a request
	// timeout.
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.RequestTimeout+cfg.ShutdownTimeout, logger)
	if observability.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		srv.AccessLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Classify at start-up and then on every interval; /readyz reports
	// ready after the first success.
	rcfg := refresh.DefaultConfig()
	rcfg.Interval = cfg.ClassifyInterval
	loop := refresh.New(svc, rcfg, nil, logger, metrics)
	go func() {
		if err := loop.Run(ctx); err != nil {
			logger.Error("refresh loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := closePublisher(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}

	logger.Info("shutdown complete")
}
