package ollama

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/llm/llmjson"
)

// parseRerankScores resolves passage numbers to document ids. Ids that are
// neither a valid number nor a known document id are dropped.
func parseRerankScores(raw string, docs []domain.RerankDocument) ([]domain.RerankScore, error) {
	var payload struct {
		Ranking []struct {
			ID    json.RawMessage `json:"id"`
			Score float64         `json:"score"`
		} `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(llmjson.ExtractObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse rerank json: %w", err)
	}

	known := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		known[doc.ID] = struct{}{}
	}

	out := make([]domain.RerankScore, 0, len(payload.Ranking))
	for _, item := range payload.Ranking {
		id, ok := resolveRerankID(item.ID, docs, known)
		if !ok {
			continue
		}
		out = append(out, domain.RerankScore{ID: id, Score: item.Score})
	}
	return out, nil
}

func resolveRerankID(raw json.RawMessage, docs []domain.RerankDocument, known map[string]struct{}) (string, bool) {
	var number int
	if err := json.Unmarshal(raw, &number); err == nil {
		if number < 1 || number > len(docs) {
			return "", false
		}
		return docs[number-1].ID, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	if _, ok := known[text]; ok {
		return text, true
	}
	if n, err := strconv.Atoi(strings.Trim(text, "[]")); err == nil && n >= 1 && n <= len(docs) {
		return docs[n-1].ID, true
	}
	return "", false
}
