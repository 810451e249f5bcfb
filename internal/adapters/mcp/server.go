// Package mcpadapter exposes the query pipeline as an MCP tool.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

const (
	ServerName     = "benefits-rag"
	AnswerToolName = "answer_query"
)

// QueryRecorder receives one call per finished tool invocation.
type QueryRecorder func(resp *domain.QueryResponse, duration time.Duration)

type handler struct {
	query  ports.QueryService
	record QueryRecorder
}

func NewServer(query ports.QueryService, version string, record QueryRecorder) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Answers questions about Medicaid, long-term care and benefits programs from a fixed document corpus, with citations, confidence, disclaimers and data freshness warnings."),
	)
	h := &handler{query: query, record: record}
	s.AddTool(answerQueryTool(), h.answerQuery)
	return s
}

func answerQueryTool() mcp.Tool {
	return mcp.NewTool(AnswerToolName,
		mcp.WithDescription("Answer a benefits or eligibility question from the indexed regulatory documents. Returns the answer with citations, a 0-100 confidence score, sensitive-topic disclaimers and freshness warnings."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question, e.g. \"What is the 2026 income limit for nursing home Medicaid?\""),
		),
		mcp.WithBoolean("use_cache",
			mcp.Description("Serve a cached answer for an identical question when available. Defaults to true."),
		),
	)
}

func (h *handler) answerQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := strings.TrimSpace(req.GetString("question", ""))
	if question == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	useCache := req.GetBool("use_cache", true)

	start := time.Now()
	resp, err := h.query.AnswerQuery(ctx, question, domain.QueryOptions{UseCache: useCache})
	if h.record != nil {
		h.record(resp, time.Since(start))
	}
	if err != nil {
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal query response: %w", err)
	}
	slog.Info("mcp_query_answered", "query_id", resp.QueryID, "cached", resp.Cached, "confidence", resp.Confidence)
	return mcp.NewToolResultText(string(payload)), nil
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrUnavailable):
		slog.Warn("mcp_query_unavailable", "error", err)
		return "a dependency is temporarily unavailable, retry later"
	default:
		slog.Error("mcp_query_failed", "error", err)
		return "internal error"
	}
}
