package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

// EmbeddingGateway fronts the embedding provider with a fingerprint cache.
type EmbeddingGateway struct {
	provider ports.Embedder
	cache    ports.EmbeddingCache
	observer ports.PipelineObserver
}

func NewEmbeddingGateway(provider ports.Embedder, cache ports.EmbeddingCache, observer ports.PipelineObserver) *EmbeddingGateway {
	if observer == nil {
		observer = noopObserver{}
	}
	return &EmbeddingGateway{
		provider: provider,
		cache:    cache,
		observer: observer,
	}
}

// EmbedQuery returns the cached vector when present. Cache errors degrade to
// an uncached provider call; provider errors are returned.
func (g *EmbeddingGateway) EmbedQuery(ctx context.Context, text string) (domain.Embedding, bool, error) {
	fingerprint := contentFingerprint(text)

	if g.cache != nil {
		cached, ok, err := g.cache.GetEmbedding(ctx, fingerprint)
		switch {
		case err != nil:
			slog.Warn("embedding_cache_get_failed", "fingerprint", fingerprint, "error", err)
		case ok && len(cached.Vector) > 0:
			g.observer.ObserveCacheLookup(embeddingCacheName, true)
			return cached, true, nil
		}
		g.observer.ObserveCacheLookup(embeddingCacheName, false)
	}

	embedding, err := g.provider.EmbedQuery(ctx, text)
	if err != nil {
		return domain.Embedding{}, false, fmt.Errorf("embed query: %w", err)
	}
	if len(embedding.Vector) == 0 {
		return domain.Embedding{}, false, fmt.Errorf("embed query: empty embedding result")
	}

	if g.cache != nil {
		if err := g.cache.PutEmbedding(ctx, fingerprint, embedding); err != nil {
			slog.Warn("embedding_cache_put_failed", "fingerprint", fingerprint, "error", err)
		}
	}
	return embedding, false, nil
}

// contentFingerprint is the SHA-256 of the raw text, hex encoded.
func contentFingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
