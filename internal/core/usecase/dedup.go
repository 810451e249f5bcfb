package usecase

import (
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

const defaultDedupThreshold = 0.9

// dedupNearDuplicates walks results in rank order and drops any candidate whose
// word-level Jaccard similarity with an already accepted result exceeds the
// threshold. Accepted results are never revisited, so the first occurrence wins.
func dedupNearDuplicates(results []domain.FusedResult, threshold float64) []domain.FusedResult {
	if len(results) == 0 {
		return results
	}
	if threshold <= 0 {
		threshold = defaultDedupThreshold
	}

	accepted := make([]domain.FusedResult, 0, len(results))
	acceptedSets := make([]map[string]struct{}, 0, len(results))
	for _, candidate := range results {
		words := toWordSet(candidate.Content)

		duplicate := false
		for _, seen := range acceptedSets {
			if jaccardSimilarity(words, seen) > threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		accepted = append(accepted, candidate)
		acceptedSets = append(acceptedSets, words)
	}
	return accepted
}

// toWordSet lowercases and splits on whitespace only; punctuation stays attached.
func toWordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		out[field] = struct{}{}
	}
	return out
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for word := range small {
		if _, ok := large[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
