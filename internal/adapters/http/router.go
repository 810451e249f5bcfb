package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/benefits-rag/internal/config"
	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/benefits-rag/internal/observability/metrics"
)

const (
	serviceName        = "benefits-rag-api"
	backpressureWait   = 250 * time.Millisecond
	maxRequestBodySize = 64 << 10
)

// HealthCheck pings one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(context.Context) error
}

type Router struct {
	cfg      config.Config
	query    ports.QueryService
	metrics  *metrics.HTTPServerMetrics
	breakers func() []resilience.BreakerState
	checks   []HealthCheck
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

func WithBreakerStates(states func() []resilience.BreakerState) RouterOption {
	return func(rt *Router) { rt.breakers = states }
}

func WithHealthChecks(checks ...HealthCheck) RouterOption {
	return func(rt *Router) { rt.checks = append(rt.checks, checks...) }
}

func NewRouter(cfg config.Config, query ports.QueryService, opts ...RouterOption) *Router {
	rt := &Router{cfg: cfg, query: query}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler wires the middleware chain. Traffic control guards /v1 only so
// health checks and scrapes keep working under load.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	var api http.Handler = http.HandlerFunc(rt.answerQuery)
	api = validator.middleware(api)
	api = backpressureMiddleware(api, rt.cfg.APIMaxInFlight, backpressureWait)
	api = rateLimitMiddleware(api, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/query", api)
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

type queryRequest struct {
	Question string `json:"question"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// The query parameter wins over the body field; caching is on by default.
	var useCacheParam *bool
	if err := runtime.BindQueryParameter("form", true, false, "use_cache", r.URL.Query(), &useCacheParam); err != nil {
		writeError(w, http.StatusBadRequest, "invalid use_cache parameter")
		return
	}
	useCache := true
	switch {
	case useCacheParam != nil:
		useCache = *useCacheParam
	case req.UseCache != nil:
		useCache = *req.UseCache
	}

	ctx := r.Context()
	if rt.cfg.APIRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.cfg.APIRequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := rt.query.AnswerQuery(ctx, req.Question, domain.QueryOptions{UseCache: useCache})
	if rt.metrics != nil {
		rt.metrics.RecordQuery("http", resp, time.Since(start))
	}
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("query_failed", "request_id", requestIDFromContext(r.Context()), "status", status, "error", err)
		}
		writeError(w, status, publicErrorMessage(status, err))
		return
	}

	slog.Info("query_answered",
		"request_id", requestIDFromContext(r.Context()),
		"query_id", resp.QueryID,
		"cached", resp.Cached,
		"citations", len(resp.Citations),
		"confidence", resp.Confidence,
		"rerank_status", resp.RetrievalStats.RerankStatus,
		"latency_ms", resp.LatencyMs,
	)
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status       string                    `json:"status"`
	Dependencies map[string]string         `json:"dependencies,omitempty"`
	Breakers     []resilience.BreakerState `json:"breakers,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if len(rt.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp.Dependencies = make(map[string]string, len(rt.checks))
		for _, check := range rt.checks {
			if err := check.Check(ctx); err != nil {
				resp.Dependencies[check.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Dependencies[check.Name] = "ok"
		}
	}
	if rt.breakers != nil {
		resp.Breakers = rt.breakers()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
