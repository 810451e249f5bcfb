package ports

import (
	"context"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

// Embedder builds the query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) (domain.Embedding, error)
}

// EmbeddingCache stores query vectors by content fingerprint. Callers treat
// every error as a cache miss.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, fingerprint string) (domain.Embedding, bool, error)
	PutEmbedding(ctx context.Context, fingerprint string, embedding domain.Embedding) error
}

// VectorIndex performs similarity search, best match first.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, topK int) ([]domain.SearchResult, error)
}

// LexicalIndex performs ranked full-text search, best match first.
type LexicalIndex interface {
	SearchLexical(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error)
}

// ListwiseReranker orders a whole candidate set at once. It may fail or time
// out; callers must be ready to fall back.
type ListwiseReranker interface {
	Rerank(ctx context.Context, query string, docs []domain.RerankDocument, topN int) ([]domain.RerankScore, error)
}

// AnswerModel produces prose plus the 1-based indices of contexts it cited.
type AnswerModel interface {
	GenerateAnswer(ctx context.Context, question string, contexts []domain.SynthesisContext) (domain.ModelAnswer, error)
}

// ResponseCache stores serialized answers with a TTL.
type ResponseCache interface {
	GetResponse(ctx context.Context, fingerprint string) ([]byte, bool, error)
	PutResponse(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error
}

// QueryLogSink records query metrics. Failures are never fatal to a query.
type QueryLogSink interface {
	LogQuery(ctx context.Context, entry domain.QueryLogEntry) error
}

// DocumentMetadataSource lists corpus documents for the freshness snapshot.
type DocumentMetadataSource interface {
	ListDocuments(ctx context.Context) ([]domain.DocumentMeta, error)
}

// PipelineObserver receives per-stage signals for metrics.
type PipelineObserver interface {
	ObserveCacheLookup(cache string, hit bool)
	ObserveRerank(status domain.RerankStatus)
	ObserveGuardrail(result domain.GuardrailResult)
	ObserveFreshness(info domain.FreshnessInfo)
}
