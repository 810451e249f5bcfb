package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/benefits-rag/internal/adapters/http"
	"github.com/kirillkom/benefits-rag/internal/bootstrap"
	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/observability/logging"
)

const serviceName = "benefits-rag-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	checks := make([]httpadapter.HealthCheck, 0, len(app.Dependencies))
	for _, dep := range app.Dependencies {
		checks = append(checks, httpadapter.HealthCheck{Name: dep.Name, Check: dep.Ping})
	}
	handler, err := httpadapter.NewRouter(cfg, app.QueryUC,
		httpadapter.WithMetrics(app.Metrics),
		httpadapter.WithBreakerStates(app.BreakerStates),
		httpadapter.WithHealthChecks(checks...),
	).Handler()
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.APIRequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.APIMaxConns)
	}

	go func() {
		slog.Info("api_listening",
			"port", cfg.APIPort,
			"embed_provider", cfg.EmbedProvider,
			"synth_provider", cfg.SynthProvider,
			"lexical_backend", cfg.LexicalBackend,
			"rerank_provider", cfg.RerankProvider,
			"cache_backend", cfg.CacheBackend,
			"query_log_sink", cfg.QueryLogSink,
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
