package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/benefits-rag/internal/adapters/mcp"
	"github.com/kirillkom/benefits-rag/internal/bootstrap"
	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/observability/logging"
)

const (
	serviceName = "benefits-rag-mcp"
	version     = "1.0.0"
)

// stdout carries the MCP protocol, so logs go to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(app.QueryUC, version, func(resp *domain.QueryResponse, d time.Duration) {
		app.Metrics.RecordQuery("mcp", resp, d)
	})

	slog.Info("mcp_server_starting", "transport", "stdio")
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
