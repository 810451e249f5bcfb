package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/benefits-rag/internal/bootstrap"
	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/observability/logging"
)

const serviceName = "benefits-rag-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           worker.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSQueryLogSubject)
	err = worker.Queue.SubscribeQueryLogs(ctx, func(handlerCtx context.Context, entry domain.QueryLogEntry) error {
		if !entry.CreatedAt.IsZero() {
			worker.Metrics.ObserveQueueLag(time.Since(entry.CreatedAt))
		}

		persistCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()

		return worker.Metrics.ObservePersist(func() error {
			return worker.QueryLogs.LogQuery(persistCtx, entry)
		})
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}
