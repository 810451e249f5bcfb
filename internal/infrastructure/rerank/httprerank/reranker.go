// Package httprerank calls an external cross-encoder service.
//
// Request:  {"query":"...","candidates":[{"id":"","text":"..."}],"top_n":10}
// Response: {"ranking":[{"id":"","score":0.9}]}
package httprerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
)

type Reranker struct {
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type rerankRequest struct {
	Query      string            `json:"query"`
	Candidates []rerankCandidate `json:"candidates"`
	TopN       int               `json:"top_n,omitempty"`
}

type rerankCandidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type rerankResponse struct {
	Ranking []domain.RerankScore `json:"ranking"`
}

func New(endpoint string, timeout time.Duration, executor *resilience.Executor) *Reranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Reranker{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Rerank returns the service's ordering unfiltered. Unknown ids are dropped
// by the core.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []domain.RerankDocument, topN int) ([]domain.RerankScore, error) {
	if r.endpoint == "" {
		return nil, fmt.Errorf("rerank endpoint is not configured")
	}

	req := rerankRequest{Query: query, TopN: topN, Candidates: make([]rerankCandidate, 0, len(docs))}
	for _, doc := range docs {
		req.Candidates = append(req.Candidates, rerankCandidate{ID: doc.ID, Text: doc.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	return resilience.Call(ctx, r.executor, "http_rerank", func(ctx context.Context) ([]domain.RerankScore, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create rerank request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, &resilience.StatusError{
				Service:    "reranker",
				Operation:  "rerank",
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(msg),
			}
		}

		var out rerankResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode rerank response: %w", err)
		}
		return out.Ranking, nil
	}, resilience.ClassifyHTTP)
}
