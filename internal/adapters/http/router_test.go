package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/benefits-rag/internal/observability/metrics"
)

type queryServiceFake struct {
	mu    sync.Mutex
	resp  *domain.QueryResponse
	err   error
	calls []queryCall
}

type queryCall struct {
	question string
	opts     domain.QueryOptions
}

func (f *queryServiceFake) AnswerQuery(_ context.Context, question string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, queryCall{question: question, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &domain.QueryResponse{QueryID: "q-1", Answer: "ok", Citations: []domain.Citation{}}, nil
}

func newTestHandler(t *testing.T, cfg config.Config, query *queryServiceFake, opts ...RouterOption) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, query, opts...).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func postQuery(handler http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAnswerQueryReturnsResponse(t *testing.T) {
	page := 4
	query := &queryServiceFake{resp: &domain.QueryResponse{
		QueryID:    "q-42",
		Answer:     "The limit is $2,901 [1].",
		Confidence: 77,
		Citations: []domain.Citation{{
			ChunkID: "c-1", DocumentID: "d-1", Filename: "limits.pdf", PageNumber: &page, Excerpt: "limit",
		}},
		RetrievalStats: domain.RetrievalStats{RerankStatus: domain.RerankModel},
	}}
	handler := newTestHandler(t, config.Config{}, query)

	res := postQuery(handler, "/v1/query", `{"question":"What is the income limit?"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}

	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["query_id"] != "q-42" || body["confidence"] != float64(77) {
		t.Fatalf("unexpected body %v", body)
	}
	stats := body["retrieval_stats"].(map[string]any)
	if stats["rerank_status"] != "model" {
		t.Fatalf("unexpected stats %v", stats)
	}

	if len(query.calls) != 1 || query.calls[0].question != "What is the income limit?" || !query.calls[0].opts.UseCache {
		t.Fatalf("unexpected calls %+v", query.calls)
	}
}

func TestAnswerQueryCacheFlagPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		target string
		body   string
		want   bool
	}{
		{name: "default", target: "/v1/query", body: `{"question":"q"}`, want: true},
		{name: "body", target: "/v1/query", body: `{"question":"q","use_cache":false}`, want: false},
		{name: "param", target: "/v1/query?use_cache=false", body: `{"question":"q"}`, want: false},
		{name: "param wins", target: "/v1/query?use_cache=true", body: `{"question":"q","use_cache":false}`, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query := &queryServiceFake{}
			res := postQuery(newTestHandler(t, config.Config{}, query), tc.target, tc.body)
			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
			}
			if query.calls[0].opts.UseCache != tc.want {
				t.Fatalf("expected UseCache=%v, got %v", tc.want, query.calls[0].opts.UseCache)
			}
		})
	}
}

func TestAnswerQueryRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name   string
		target string
		body   string
	}{
		{name: "missing question", target: "/v1/query", body: `{}`},
		{name: "empty question", target: "/v1/query", body: `{"question":""}`},
		{name: "unknown field", target: "/v1/query", body: `{"question":"q","limit":5}`},
		{name: "bad param", target: "/v1/query?use_cache=maybe", body: `{"question":"q"}`},
		{name: "not json", target: "/v1/query", body: `question=q`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query := &queryServiceFake{}
			res := postQuery(newTestHandler(t, config.Config{}, query), tc.target, tc.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
			}
			if len(query.calls) != 0 {
				t.Fatalf("query service should not be called")
			}
		})
	}
}

func TestAnswerQueryMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid", err: domain.WrapError(domain.ErrInvalidInput, "answer query", errors.New("question is required")), want: http.StatusBadRequest},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "ollama embed", errors.New("503")), want: http.StatusServiceUnavailable},
		{name: "unavailable", err: domain.WrapError(domain.ErrUnavailable, "qdrant", errors.New("down")), want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, &queryServiceFake{err: tc.err})
			res := postQuery(handler, "/v1/query", `{"question":"   "}`)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			if tc.want == http.StatusInternalServerError && strings.Contains(res.Body.String(), "boom") {
				t.Fatalf("internal error detail leaked: %s", res.Body.String())
			}
		})
	}
}

func TestHealthzReportsDependencies(t *testing.T) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())
	_ = executor.Execute(context.Background(), "qdrant_search", func(context.Context) error { return nil }, nil)

	handler := newTestHandler(t, config.Config{}, &queryServiceFake{},
		WithBreakerStates(executor.States),
		WithHealthChecks(
			HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
			HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		),
	)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "degraded" || body.Dependencies["postgres"] != "ok" {
		t.Fatalf("unexpected health %+v", body)
	}
	if len(body.Breakers) != 1 || body.Breakers[0].Operation != "qdrant_search" || body.Breakers[0].State != "closed" {
		t.Fatalf("unexpected breakers %+v", body.Breakers)
	}
}

func TestMetricsEndpointExposesQueryCounters(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := newTestHandler(t, config.Config{}, &queryServiceFake{}, WithMetrics(m))

	postQuery(handler, "/v1/query", `{"question":"q"}`)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte("benefits_rag_query_total")) {
		t.Fatalf("expected query counter in exposition")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &queryServiceFake{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
