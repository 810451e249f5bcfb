package usecase

import (
	"sort"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

const defaultRRFK = 60

type fusedCandidate struct {
	result domain.FusedResult
	order  int
}

// rrfContribution is the score a result at zero-based rank earns from one list.
func rrfContribution(rrfK, rank int) float64 {
	return 1.0 / float64(rrfK+rank+1)
}

// fuseCandidatesRRF merges the vector and lexical lists with Reciprocal Rank
// Fusion and keeps the best topN. Ties keep first-insertion order, and vector
// entries are inserted before lexical ones.
func fuseCandidatesRRF(vector, lexical []domain.SearchResult, rrfK, topN int) []domain.FusedResult {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate, len(vector)+len(lexical))
	addList := func(results []domain.SearchResult) {
		for rank, res := range results {
			candidate, ok := acc[res.ChunkID]
			if !ok {
				candidate = &fusedCandidate{result: newFusedResult(res), order: len(acc)}
				acc[res.ChunkID] = candidate
			} else {
				candidate.result = preferRicherResult(candidate.result, res)
			}
			candidate.result.RRFScore += rrfContribution(rrfK, rank)
			candidate.result.Origins = candidate.result.Origins.Add(res.Origin)

			score := res.Score
			switch res.Origin {
			case domain.OriginVector:
				candidate.result.VectorScore = &score
			case domain.OriginLexical:
				candidate.result.LexicalScore = &score
			}
		}
	}

	addList(vector)
	addList(lexical)

	ordered := make([]*fusedCandidate, 0, len(acc))
	for _, c := range acc {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].result.RRFScore != ordered[j].result.RRFScore {
			return ordered[i].result.RRFScore > ordered[j].result.RRFScore
		}
		return ordered[i].order < ordered[j].order
	})

	out := make([]domain.FusedResult, 0, len(ordered))
	for _, c := range ordered {
		out = append(out, c.result)
	}
	return trimFused(out, topN)
}

func trimFused(results []domain.FusedResult, limit int) []domain.FusedResult {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

func newFusedResult(res domain.SearchResult) domain.FusedResult {
	return domain.FusedResult{
		ChunkID:    res.ChunkID,
		DocumentID: res.DocumentID,
		Filename:   res.Filename,
		Title:      res.Title,
		Content:    res.Content,
		PageNumber: res.PageNumber,
		ChunkIndex: res.ChunkIndex,
		Metadata:   res.Metadata,
	}
}

func preferRicherResult(current domain.FusedResult, candidate domain.SearchResult) domain.FusedResult {
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.Filename == "" && candidate.Filename != "" {
		current.Filename = candidate.Filename
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.DocumentID == "" && candidate.DocumentID != "" {
		current.DocumentID = candidate.DocumentID
	}
	if current.PageNumber == nil && candidate.PageNumber != nil {
		current.PageNumber = candidate.PageNumber
	}
	if len(current.Metadata) == 0 && len(candidate.Metadata) > 0 {
		current.Metadata = candidate.Metadata
	}
	return current
}
