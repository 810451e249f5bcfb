package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

const (
	responseCacheName  = "response"
	embeddingCacheName = "embedding"
)

// QueryComponents groups the pipeline stages owned by QueryUseCase.
type QueryComponents struct {
	Embeddings  *EmbeddingGateway
	Retriever   *HybridRetriever
	Reranker    *Reranker
	Synthesizer *AnswerSynthesizer
	Guardrail   *GuardrailAnnotator
	Freshness   *FreshnessAnnotator
	Responses   ports.ResponseCache
	QueryLog    ports.QueryLogSink
	Observer    ports.PipelineObserver
}

type QueryUseCase struct {
	embeddings  *EmbeddingGateway
	retriever   *HybridRetriever
	reranker    *Reranker
	synthesizer *AnswerSynthesizer
	guardrail   *GuardrailAnnotator
	freshness   *FreshnessAnnotator
	responses   ports.ResponseCache
	queryLog    ports.QueryLogSink
	observer    ports.PipelineObserver
	limits      domain.QueryLimits
	now         func() time.Time

	pendingLogs sync.WaitGroup
}

func NewQueryUseCase(components QueryComponents, limits domain.QueryLimits) *QueryUseCase {
	if limits.RRFK <= 0 {
		limits.RRFK = 60
	}
	if limits.FuseTopN <= 0 {
		limits.FuseTopN = 20
	}
	if limits.RerankTopN <= 0 {
		limits.RerankTopN = 10
	}
	if limits.ContextTopC <= 0 {
		limits.ContextTopC = 5
	}
	if limits.DedupThreshold <= 0 {
		limits.DedupThreshold = defaultDedupThreshold
	}
	if limits.ResponseCacheTTL <= 0 {
		limits.ResponseCacheTTL = time.Hour
	}
	if limits.LogTimeout <= 0 {
		limits.LogTimeout = 2 * time.Second
	}

	observer := components.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	guardrail := components.Guardrail
	if guardrail == nil {
		guardrail = NewGuardrailAnnotator()
	}
	freshness := components.Freshness
	if freshness == nil {
		freshness = NewFreshnessAnnotator(nil, nil)
	}
	reranker := components.Reranker
	if reranker == nil {
		reranker = NewReranker(nil)
	}

	return &QueryUseCase{
		embeddings:  components.Embeddings,
		retriever:   components.Retriever,
		reranker:    reranker,
		synthesizer: components.Synthesizer,
		guardrail:   guardrail,
		freshness:   freshness,
		responses:   components.Responses,
		queryLog:    components.QueryLog,
		observer:    observer,
		limits:      limits,
		now:         time.Now,
	}
}

func (uc *QueryUseCase) AnswerQuery(ctx context.Context, question string, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", fmt.Errorf("question is required"))
	}

	started := uc.now()
	queryID := uuid.NewString()

	guard := uc.guardrail.Check(question)
	uc.observer.ObserveGuardrail(guard)

	fingerprint := ""
	if opts.UseCache && uc.responses != nil {
		fingerprint = queryFingerprint(question)
		if cached, ok := uc.lookupResponse(ctx, fingerprint); ok {
			stats := cached.RetrievalStats
			stats.ResponseCacheHit = true
			resp := uc.finish(ctx, queryID, question, started, guard, domain.Synthesis{
				Answer:     cached.Answer,
				Citations:  cached.Citations,
				Confidence: cached.Confidence,
			}, stats, true)
			return resp, nil
		}
	}

	embedding, embeddingHit, err := uc.embeddings.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	stats := domain.RetrievalStats{EmbeddingCacheHit: embeddingHit}

	vectorResults, lexicalResults, err := uc.retriever.Retrieve(ctx, question, embedding.Vector)
	if err != nil {
		return nil, err
	}
	stats.VectorResults = len(vectorResults)
	stats.LexicalResults = len(lexicalResults)

	fused := fuseCandidatesRRF(vectorResults, lexicalResults, uc.limits.RRFK, uc.limits.FuseTopN)
	stats.FusedResults = len(fused)

	deduped := dedupNearDuplicates(fused, uc.limits.DedupThreshold)
	stats.DedupedResults = len(deduped)

	reranked, status := uc.reranker.Rerank(ctx, question, deduped, uc.limits.RerankTopN)
	stats.RerankedResults = len(reranked)
	stats.RerankStatus = status
	uc.observer.ObserveRerank(status)

	top := reranked
	if len(top) > uc.limits.ContextTopC {
		top = top[:uc.limits.ContextTopC]
	}
	stats.ContextResults = len(top)

	synthesis, err := uc.synthesizer.Synthesize(ctx, question, top)
	if err != nil {
		return nil, err
	}

	if fingerprint != "" && len(top) > 0 {
		uc.storeResponse(ctx, fingerprint, domain.CachedAnswer{
			Answer:         synthesis.Answer,
			Citations:      synthesis.Citations,
			Confidence:     synthesis.Confidence,
			RetrievalStats: stats,
			CreatedAt:      uc.now().UTC(),
		})
	}

	return uc.finish(ctx, queryID, question, started, guard, synthesis, stats, false), nil
}

// finish annotates the synthesis, guardrail first and freshness second, then
// records the query.
func (uc *QueryUseCase) finish(
	ctx context.Context,
	queryID string,
	question string,
	started time.Time,
	guard domain.GuardrailResult,
	synthesis domain.Synthesis,
	stats domain.RetrievalStats,
	cached bool,
) *domain.QueryResponse {
	citations := synthesis.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}

	freshness := uc.freshness.Assess(ctx, citations)
	uc.observer.ObserveFreshness(freshness)

	answer := uc.guardrail.Annotate(synthesis.Answer, guard)
	answer = uc.freshness.Annotate(answer, freshness)

	resp := &domain.QueryResponse{
		QueryID:        queryID,
		Answer:         answer,
		Citations:      citations,
		Confidence:     synthesis.Confidence,
		LatencyMs:      uc.now().Sub(started).Milliseconds(),
		RetrievalStats: stats,
		Freshness:      freshness,
		Guardrail:      guard,
		Cached:         cached,
	}
	uc.logQuery(ctx, question, resp)
	return resp
}

func (uc *QueryUseCase) lookupResponse(ctx context.Context, fingerprint string) (domain.CachedAnswer, bool) {
	payload, ok, err := uc.responses.GetResponse(ctx, fingerprint)
	if err != nil {
		slog.Warn("response_cache_get_failed", "fingerprint", fingerprint, "error", err)
		uc.observer.ObserveCacheLookup(responseCacheName, false)
		return domain.CachedAnswer{}, false
	}
	if !ok {
		uc.observer.ObserveCacheLookup(responseCacheName, false)
		return domain.CachedAnswer{}, false
	}

	var cached domain.CachedAnswer
	if err := json.Unmarshal(payload, &cached); err != nil {
		slog.Warn("response_cache_decode_failed", "fingerprint", fingerprint, "error", err)
		uc.observer.ObserveCacheLookup(responseCacheName, false)
		return domain.CachedAnswer{}, false
	}
	uc.observer.ObserveCacheLookup(responseCacheName, true)
	return cached, true
}

func (uc *QueryUseCase) storeResponse(ctx context.Context, fingerprint string, cached domain.CachedAnswer) {
	payload, err := json.Marshal(cached)
	if err != nil {
		slog.Warn("response_cache_encode_failed", "fingerprint", fingerprint, "error", err)
		return
	}
	if err := uc.responses.PutResponse(ctx, fingerprint, payload, uc.limits.ResponseCacheTTL); err != nil {
		slog.Warn("response_cache_put_failed", "fingerprint", fingerprint, "error", err)
	}
}

// logQuery hands the entry to the sink in the background. The write is
// bounded by LogTimeout and survives caller cancellation.
func (uc *QueryUseCase) logQuery(ctx context.Context, question string, resp *domain.QueryResponse) {
	if uc.queryLog == nil {
		return
	}
	entry := domain.QueryLogEntry{
		QueryID:    resp.QueryID,
		QueryText:  question,
		Stats:      resp.RetrievalStats,
		LatencyMs:  resp.LatencyMs,
		HasAnswer:  len(resp.Citations) > 0,
		Confidence: resp.Confidence,
		CacheHit:   resp.Cached,
		CreatedAt:  uc.now().UTC(),
	}
	if resp.Guardrail.Category != nil {
		entry.GuardrailCategory = resp.Guardrail.Category.String()
	}

	logCtx := context.WithoutCancel(ctx)
	uc.pendingLogs.Go(func() {
		logCtx, cancel := context.WithTimeout(logCtx, uc.limits.LogTimeout)
		defer cancel()
		if err := uc.queryLog.LogQuery(logCtx, entry); err != nil {
			slog.Warn("query_log_failed", "query_id", entry.QueryID, "error", err)
		}
	})
}

// Flush waits for background query log writes. Call it before closing the
// sink.
func (uc *QueryUseCase) Flush() {
	uc.pendingLogs.Wait()
}

// queryFingerprint hashes the query after lowercasing and collapsing
// whitespace, so trivially different spellings share a cache entry.
func queryFingerprint(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return contentFingerprint(normalized)
}

type noopObserver struct{}

func (noopObserver) ObserveCacheLookup(string, bool) {}
func (noopObserver) ObserveRerank(domain.RerankStatus) {}
func (noopObserver) ObserveGuardrail(domain.GuardrailResult) {}
func (noopObserver) ObserveFreshness(domain.FreshnessInfo) {}
