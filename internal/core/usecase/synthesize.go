package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

const (
	NoInformationAnswer = "I could not find information about this in the available documents. " +
		"Please rephrase your question or contact your local benefits office."

	maxExcerptRunes = 240

	defaultRankWeight     = 0.6
	defaultCitationWeight = 0.4
)

// ConfidenceWeights balance ranking quality against citation coverage.
type ConfidenceWeights struct {
	Rank     float64
	Citation float64
}

func (w ConfidenceWeights) normalize() ConfidenceWeights {
	if w.Rank < 0 || w.Citation < 0 || w.Rank+w.Citation == 0 {
		return ConfidenceWeights{Rank: defaultRankWeight, Citation: defaultCitationWeight}
	}
	return w
}

type AnswerSynthesizer struct {
	model   ports.AnswerModel
	weights ConfidenceWeights
}

func NewAnswerSynthesizer(model ports.AnswerModel, weights ConfidenceWeights) *AnswerSynthesizer {
	return &AnswerSynthesizer{
		model:   model,
		weights: weights.normalize(),
	}
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, top []domain.RerankedResult) (domain.Synthesis, error) {
	if len(top) == 0 {
		return domain.Synthesis{
			Answer:     NoInformationAnswer,
			Citations:  []domain.Citation{},
			Confidence: 0,
		}, nil
	}

	contexts := make([]domain.SynthesisContext, 0, len(top))
	for i, res := range top {
		contexts = append(contexts, domain.SynthesisContext{
			Index:      i + 1,
			Content:    res.Content,
			Filename:   res.Filename,
			PageNumber: res.PageNumber,
		})
	}

	out, err := s.model.GenerateAnswer(ctx, question, contexts)
	if err != nil {
		return domain.Synthesis{}, fmt.Errorf("generate answer: %w", err)
	}

	citations := buildCitations(top, out.CitedIndices)
	return domain.Synthesis{
		Answer:     strings.TrimSpace(out.Answer),
		Citations:  citations,
		Confidence: confidenceScore(top, len(citations), s.weights),
	}, nil
}

// buildCitations resolves 1-based indices. Out-of-range and repeated indices
// are dropped.
func buildCitations(top []domain.RerankedResult, indices []int) []domain.Citation {
	out := make([]domain.Citation, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(top) {
			continue
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}

		res := top[idx-1]
		out = append(out, domain.Citation{
			ChunkID:    res.ChunkID,
			DocumentID: res.DocumentID,
			Filename:   res.Filename,
			Title:      res.Title,
			PageNumber: res.PageNumber,
			ChunkIndex: res.ChunkIndex,
			Excerpt:    excerpt(res.Content, maxExcerptRunes),
		})
	}
	return out
}

func confidenceScore(top []domain.RerankedResult, citations int, weights ConfidenceWeights) int {
	if len(top) == 0 {
		return 0
	}
	var sum float64
	for _, res := range top {
		sum += res.RerankScore
	}
	avgRerank := sum / float64(len(top))
	citedFraction := float64(citations) / float64(len(top))

	score := (avgRerank*weights.Rank + citedFraction*weights.Citation) * 100
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

func excerpt(content string, limit int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
