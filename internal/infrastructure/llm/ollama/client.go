package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/llm/llmjson"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, e.client.executor, "/api/embed", request, &response, "embed"); err != nil {
		return domain.Embedding{}, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return domain.Embedding{}, fmt.Errorf("empty embedding result")
	}

	model := response.Model
	if model == "" {
		model = e.client.embedModel
	}
	return domain.Embedding{Vector: response.Embeddings[0], Model: model}, nil
}

// AnswerModel asks the generation model for a JSON answer with cited context
// indices.
type AnswerModel struct {
	client *Client
}

func NewAnswerModel(client *Client) *AnswerModel {
	return &AnswerModel{client: client}
}

func (m *AnswerModel) GenerateAnswer(ctx context.Context, question string, contexts []domain.SynthesisContext) (domain.ModelAnswer, error) {
	raw, err := m.client.generateJSON(ctx, m.client.executor, buildAnswerPrompt(question, contexts), "generate_answer")
	if err != nil {
		return domain.ModelAnswer{}, err
	}
	return llmjson.ParseModelAnswer(raw), nil
}

// Reranker scores a candidate set in one listwise prompt. It makes a single
// attempt bounded by timeout because the caller falls back on any error.
type Reranker struct {
	client   *Client
	timeout  time.Duration
	executor *resilience.Executor
}

func NewReranker(client *Client, timeout time.Duration, executor *resilience.Executor) *Reranker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Reranker{client: client, timeout: timeout, executor: executor}
}

func (r *Reranker) Rerank(ctx context.Context, query string, docs []domain.RerankDocument, topN int) ([]domain.RerankScore, error) {
	if len(docs) == 0 {
		return []domain.RerankScore{}, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.generateJSON(ctx, r.executor, buildRerankPrompt(query, docs, topN), "rerank")
	if err != nil {
		return nil, err
	}
	return parseRerankScores(raw, docs)
}

func (c *Client) generateJSON(ctx context.Context, executor *resilience.Executor, prompt, operation string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, executor, "/api/generate", reqBody, &response, operation); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
