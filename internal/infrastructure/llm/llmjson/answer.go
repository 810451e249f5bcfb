// Package llmjson decodes the JSON answer shape shared by the generation
// adapters, tolerating models that wrap JSON in prose or skip it entirely.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// ParseModelAnswer accepts {"answer", "cited_indices"} and falls back to
// treating the output as prose with [n] markers.
func ParseModelAnswer(raw string) domain.ModelAnswer {
	var payload struct {
		Answer       string `json:"answer"`
		CitedIndices []int  `json:"cited_indices"`
	}
	if err := json.Unmarshal([]byte(ExtractObject(raw)), &payload); err == nil && strings.TrimSpace(payload.Answer) != "" {
		cited := payload.CitedIndices
		if len(cited) == 0 {
			cited = CitationMarkers(payload.Answer)
		}
		return domain.ModelAnswer{Answer: strings.TrimSpace(payload.Answer), CitedIndices: cited}
	}

	return domain.ModelAnswer{
		Answer:       strings.TrimSpace(raw),
		CitedIndices: CitationMarkers(raw),
	}
}

// CitationMarkers returns every [n] marker in order of appearance.
func CitationMarkers(text string) []int {
	matches := citationMarker.FindAllStringSubmatch(text, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func ExtractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
