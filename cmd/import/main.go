// The import service watches a directory for traffic count files, derives
// binned counts from them, and loads the results into the database.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/dvrpc/traffic-counts-sub000/internal/adapter/http"
	kafkaadapter "github.com/dvrpc/traffic-counts-sub000/internal/adapter/kafka"
	"github.com/dvrpc/traffic-counts-sub000/internal/aadv"
	"github.com/dvrpc/traffic-counts-sub000/internal/config"
	"github.com/dvrpc/traffic-counts-sub000/internal/observability"
	"github.com/dvrpc/traffic-counts-sub000/internal/pipeline"
	"github.com/dvrpc/traffic-counts-sub000/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	publisher := kafkaadapter.NewWriter(cfg, logger)
	calculator := aadv.New(st, logger)
	importer := pipeline.New(cfg, st, calculator, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, importer, st, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start import loop.
	go func() {
		if err := importer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("import loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
