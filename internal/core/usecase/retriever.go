package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

const (
	defaultVectorTopK  = 20
	defaultLexicalTopK = 20
)

// HybridRetriever runs vector and lexical search concurrently. Both must
// succeed; the first failure cancels the other search.
type HybridRetriever struct {
	vector      ports.VectorIndex
	lexical     ports.LexicalIndex
	vectorTopK  int
	lexicalTopK int
}

func NewHybridRetriever(vector ports.VectorIndex, lexical ports.LexicalIndex, vectorTopK, lexicalTopK int) *HybridRetriever {
	if vectorTopK <= 0 {
		vectorTopK = defaultVectorTopK
	}
	if lexicalTopK <= 0 {
		lexicalTopK = defaultLexicalTopK
	}
	return &HybridRetriever{
		vector:      vector,
		lexical:     lexical,
		vectorTopK:  vectorTopK,
		lexicalTopK: lexicalTopK,
	}
}

func (r *HybridRetriever) Retrieve(
	ctx context.Context,
	query string,
	queryVector []float32,
) (vectorResults, lexicalResults []domain.SearchResult, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := r.vector.Search(gctx, queryVector, r.vectorTopK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorResults = tagOrigin(limitResults(results, r.vectorTopK), domain.OriginVector)
		return nil
	})
	g.Go(func() error {
		results, err := r.lexical.SearchLexical(gctx, query, r.lexicalTopK)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		lexicalResults = tagOrigin(limitResults(results, r.lexicalTopK), domain.OriginLexical)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vectorResults, lexicalResults, nil
}

func limitResults(results []domain.SearchResult, limit int) []domain.SearchResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func tagOrigin(results []domain.SearchResult, origin domain.Origin) []domain.SearchResult {
	out := make([]domain.SearchResult, len(results))
	for i, res := range results {
		res.Origin = origin
		out[i] = res
	}
	return out
}
