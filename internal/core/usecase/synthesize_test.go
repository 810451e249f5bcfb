package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

type answerModelFake struct {
	answer   domain.ModelAnswer
	err      error
	calls    int
	contexts []domain.SynthesisContext
}

func (f *answerModelFake) GenerateAnswer(_ context.Context, _ string, contexts []domain.SynthesisContext) (domain.ModelAnswer, error) {
	f.calls++
	f.contexts = contexts
	if f.err != nil {
		return domain.ModelAnswer{}, f.err
	}
	return f.answer, nil
}

func rerankedTop(scores ...float64) []domain.RerankedResult {
	out := make([]domain.RerankedResult, 0, len(scores))
	for i, score := range scores {
		id := string(rune('a' + i))
		page := i + 1
		out = append(out, domain.RerankedResult{
			FusedResult: domain.FusedResult{
				ChunkID:    id,
				DocumentID: "doc-" + id,
				Filename:   id + ".pdf",
				Content:    "content " + id,
				PageNumber: &page,
				ChunkIndex: i,
			},
			RerankScore: score,
		})
	}
	return out
}

func TestSynthesizeEmptyTopReturnsNoInformation(t *testing.T) {
	model := &answerModelFake{}
	out, err := NewAnswerSynthesizer(model, ConfidenceWeights{}).Synthesize(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("expected no model call, got %d", model.calls)
	}
	if out.Answer != NoInformationAnswer || out.Confidence != 0 || len(out.Citations) != 0 {
		t.Fatalf("unexpected no-information result: %+v", out)
	}
}

func TestSynthesizeBuildsCitationsInRange(t *testing.T) {
	model := &answerModelFake{answer: domain.ModelAnswer{
		Answer:       " The limit is $2,901 [2]. ",
		CitedIndices: []int{2, 0, 9, 2, 1, -1},
	}}
	out, err := NewAnswerSynthesizer(model, ConfidenceWeights{}).Synthesize(context.Background(), "q", rerankedTop(1, 0.5))
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out.Answer != "The limit is $2,901 [2]." {
		t.Fatalf("unexpected answer %q", out.Answer)
	}
	if len(out.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(out.Citations))
	}
	if out.Citations[0].ChunkID != "b" || out.Citations[1].ChunkID != "a" {
		t.Fatalf("expected first-seen citation order, got %s, %s", out.Citations[0].ChunkID, out.Citations[1].ChunkID)
	}
	if len(model.contexts) != 2 || model.contexts[0].Index != 1 || model.contexts[1].Filename != "b.pdf" {
		t.Fatalf("unexpected contexts: %+v", model.contexts)
	}
	// avg rerank 0.75 * 0.6 + cited 1.0 * 0.4 = 0.85
	if out.Confidence != 85 {
		t.Fatalf("expected confidence 85, got %d", out.Confidence)
	}
}

func TestSynthesizeModelErrorIsHardFailure(t *testing.T) {
	model := &answerModelFake{err: errors.New("llm down")}
	_, err := NewAnswerSynthesizer(model, ConfidenceWeights{}).Synthesize(context.Background(), "q", rerankedTop(1))
	if err == nil || !strings.Contains(err.Error(), "generate answer") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestConfidenceScoreBounds(t *testing.T) {
	cases := []struct {
		name      string
		scores    []float64
		citations int
		weights   ConfidenceWeights
	}{
		{name: "high scores", scores: []float64{5, 7}, citations: 2, weights: ConfidenceWeights{Rank: 0.6, Citation: 0.4}},
		{name: "negative scores", scores: []float64{-3, -1}, citations: 0, weights: ConfidenceWeights{Rank: 0.6, Citation: 0.4}},
		{name: "zero", scores: []float64{0}, citations: 0, weights: ConfidenceWeights{Rank: 0.6, Citation: 0.4}},
		{name: "heavy weights", scores: []float64{1, 1}, citations: 2, weights: ConfidenceWeights{Rank: 3, Citation: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := confidenceScore(rerankedTop(tc.scores...), tc.citations, tc.weights)
			if got < 0 || got > 100 {
				t.Fatalf("confidence out of bounds: %d", got)
			}
		})
	}
}

func TestExcerptBoundsRunes(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := excerpt(long, 240)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 240 {
		t.Fatalf("expected 240 runes, got %d", n)
	}
	if excerpt("short", 240) != "short" {
		t.Fatalf("expected short content unchanged")
	}
}
