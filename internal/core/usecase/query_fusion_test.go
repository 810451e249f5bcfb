package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

func searchResults(origin domain.Origin, pairs ...any) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		id := pairs[i].(string)
		out = append(out, domain.SearchResult{
			ChunkID:    id,
			DocumentID: "doc-" + id,
			Filename:   id + ".pdf",
			Content:    "content " + id,
			Score:      pairs[i+1].(float64),
			Origin:     origin,
		})
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFuseCandidatesRRFOrdersByAccumulatedScore(t *testing.T) {
	vector := searchResults(domain.OriginVector, "A", 0.9, "B", 0.8, "C", 0.7)
	lexical := searchResults(domain.OriginLexical, "B", 5.0, "D", 4.0, "A", 3.0)

	fused := fuseCandidatesRRF(vector, lexical, 60, 20)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused candidates, got %d", len(fused))
	}

	got := []string{fused[0].ChunkID, fused[1].ChunkID, fused[2].ChunkID, fused[3].ChunkID}
	want := []string{"B", "A", "D", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got %v want %v", got, want)
		}
	}

	expected := map[string]float64{
		"B": rrfContribution(60, 1) + rrfContribution(60, 0),
		"A": rrfContribution(60, 0) + rrfContribution(60, 2),
		"D": 1.0 / 62,
		"C": 1.0 / 63,
	}
	for _, res := range fused {
		if !almostEqual(res.RRFScore, expected[res.ChunkID]) {
			t.Fatalf("rrf score for %s: got %f want %f", res.ChunkID, res.RRFScore, expected[res.ChunkID])
		}
	}
}

func TestFuseCandidatesRRFTracksOriginsAndRawScores(t *testing.T) {
	vector := searchResults(domain.OriginVector, "A", 0.9)
	lexical := searchResults(domain.OriginLexical, "A", 3.0, "D", 4.0)

	fused := fuseCandidatesRRF(vector, lexical, 60, 20)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}
	a := fused[0]
	if a.ChunkID != "A" {
		t.Fatalf("expected A first, got %s", a.ChunkID)
	}
	if !a.Origins.Has(domain.OriginVector) || !a.Origins.Has(domain.OriginLexical) {
		t.Fatalf("expected both origins, got %v", a.Origins.List())
	}
	if a.VectorScore == nil || *a.VectorScore != 0.9 {
		t.Fatalf("expected vector score 0.9, got %v", a.VectorScore)
	}
	if a.LexicalScore == nil || *a.LexicalScore != 3.0 {
		t.Fatalf("expected lexical score 3.0, got %v", a.LexicalScore)
	}

	d := fused[1]
	if d.Origins.Has(domain.OriginVector) || d.VectorScore != nil {
		t.Fatalf("expected D to be lexical only")
	}
}

func TestFuseCandidatesRRFTieKeepsInsertionOrder(t *testing.T) {
	vector := searchResults(domain.OriginVector, "V", 0.1)
	lexical := searchResults(domain.OriginLexical, "L", 9.0)

	fused := fuseCandidatesRRF(vector, lexical, 60, 20)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}
	if fused[0].ChunkID != "V" {
		t.Fatalf("expected vector entry first on tie, got %s", fused[0].ChunkID)
	}
}

func TestFuseCandidatesRRFTrimsAndSortsNonIncreasing(t *testing.T) {
	vector := searchResults(domain.OriginVector, "a", 1.0, "b", 0.9, "c", 0.8, "d", 0.7)
	lexical := searchResults(domain.OriginLexical, "d", 1.0, "e", 0.9, "b", 0.8)

	fused := fuseCandidatesRRF(vector, lexical, 60, 3)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}
	for i := 1; i < len(fused); i++ {
		if fused[i].RRFScore > fused[i-1].RRFScore {
			t.Fatalf("fused list not sorted at %d: %f > %f", i, fused[i].RRFScore, fused[i-1].RRFScore)
		}
	}
}

func TestFuseCandidatesRRFEmptyInputs(t *testing.T) {
	if fused := fuseCandidatesRRF(nil, nil, 60, 20); len(fused) != 0 {
		t.Fatalf("expected empty fused list, got %d", len(fused))
	}

	lexicalOnly := fuseCandidatesRRF(nil, searchResults(domain.OriginLexical, "x", 1.0), 60, 20)
	if len(lexicalOnly) != 1 || !almostEqual(lexicalOnly[0].RRFScore, 1.0/61) {
		t.Fatalf("unexpected lexical-only fusion: %+v", lexicalOnly)
	}
}

func TestFuseCandidatesRRFDefaultsK(t *testing.T) {
	fused := fuseCandidatesRRF(searchResults(domain.OriginVector, "x", 1.0), nil, 0, 0)
	if len(fused) != 1 || !almostEqual(fused[0].RRFScore, 1.0/61) {
		t.Fatalf("expected default k=60, got %+v", fused)
	}
}
