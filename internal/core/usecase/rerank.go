package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

// Reranker reorders fused candidates with a listwise scoring model. Reranking
// only improves quality: any scorer failure falls back to the fused order.
type Reranker struct {
	model ports.ListwiseReranker
}

func NewReranker(model ports.ListwiseReranker) *Reranker {
	return &Reranker{model: model}
}

// Rerank never returns an error. The status reports which branch produced
// the ordering.
func (r *Reranker) Rerank(
	ctx context.Context,
	query string,
	fused []domain.FusedResult,
	topN int,
) ([]domain.RerankedResult, domain.RerankStatus) {
	if topN <= 0 || len(fused) <= topN {
		return linearScores(fused, len(fused)), domain.RerankSkipped
	}
	if r.model == nil {
		return linearScores(fused[:topN], topN), domain.RerankFallback
	}

	docs := make([]domain.RerankDocument, 0, len(fused))
	for _, res := range fused {
		docs = append(docs, domain.RerankDocument{ID: res.ChunkID, Content: res.Content})
	}

	scores, err := r.model.Rerank(ctx, query, docs, topN)
	if err != nil {
		slog.Warn("rerank_fallback",
			"reason", "scorer_error",
			"candidates", len(fused),
			"top_n", topN,
			"error", err,
		)
		return linearScores(fused[:topN], topN), domain.RerankFallback
	}

	ranked := applyRanking(fused, scores, topN)
	if len(ranked) == 0 {
		slog.Warn("rerank_fallback",
			"reason", "empty_ranking",
			"candidates", len(fused),
			"returned", len(scores),
		)
		return linearScores(fused[:topN], topN), domain.RerankFallback
	}
	return ranked, domain.RerankModel
}

// applyRanking keeps the scorer's order, drops ids that were never retrieved
// or appear twice, and truncates to topN.
func applyRanking(fused []domain.FusedResult, scores []domain.RerankScore, topN int) []domain.RerankedResult {
	byID := make(map[string]int, len(fused))
	for i, res := range fused {
		byID[res.ChunkID] = i
	}

	out := make([]domain.RerankedResult, 0, topN)
	used := make(map[string]struct{}, len(scores))
	for _, s := range scores {
		idx, ok := byID[s.ID]
		if !ok {
			continue
		}
		if _, dup := used[s.ID]; dup {
			continue
		}
		used[s.ID] = struct{}{}
		out = append(out, domain.RerankedResult{FusedResult: fused[idx], RerankScore: s.Score})
		if len(out) == topN {
			break
		}
	}
	return out
}

// linearScores assigns 1 - i/denominator, preserving input order.
func linearScores(fused []domain.FusedResult, denominator int) []domain.RerankedResult {
	out := make([]domain.RerankedResult, 0, len(fused))
	for i, res := range fused {
		out = append(out, domain.RerankedResult{
			FusedResult: res,
			RerankScore: 1 - float64(i)/float64(denominator),
		})
	}
	return out
}
