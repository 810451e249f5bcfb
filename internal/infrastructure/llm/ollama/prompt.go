package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

const maxRerankSnippet = 1200

func buildAnswerPrompt(question string, contexts []domain.SynthesisContext) string {
	var contextBuilder strings.Builder
	for _, c := range contexts {
		if c.PageNumber != nil {
			fmt.Fprintf(&contextBuilder, "[%d] source=%s page=%d\n%s\n\n", c.Index, c.Filename, *c.PageNumber, c.Content)
			continue
		}
		fmt.Fprintf(&contextBuilder, "[%d] source=%s\n%s\n\n", c.Index, c.Filename, c.Content)
	}

	return fmt.Sprintf(`You answer questions about Medicaid, long-term care and benefits rules.
Answer only from the numbered context blocks below. Cite blocks inline as [n].
If the context is insufficient, say so directly.
Return strict JSON object with keys:
answer (string), cited_indices (array of integers).
No markdown fences, no extra keys.

Question:
%s

Context:
%s`, question, contextBuilder.String())
}

// buildRerankPrompt numbers candidates 1..n; parseRerankScores maps the
// numbers back to document ids.
func buildRerankPrompt(query string, docs []domain.RerankDocument, topN int) string {
	var b strings.Builder
	for i, doc := range docs {
		snippet := []rune(doc.Content)
		if len(snippet) > maxRerankSnippet {
			snippet = snippet[:maxRerankSnippet]
		}
		fmt.Fprintf(&b, "[%d]\n%s\n\n", i+1, string(snippet))
	}

	return fmt.Sprintf(`Rank the passages below by how well they answer the query.
Return strict JSON object with key ranking: an array of at most %d objects
{"id": <passage number>, "score": <relevance from 0 to 1>}, best first.
No markdown, no extra keys.

Query:
%s

Passages:
%s`, topN, query, b.String())
}
