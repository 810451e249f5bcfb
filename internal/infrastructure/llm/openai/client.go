// Package openai talks to OpenAI-compatible endpoints (OpenAI, vLLM, Nebius,
// LM Studio) for query embeddings and answer synthesis.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/llm/llmjson"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Dimensions int
}

type Client struct {
	api      *openai.Client
	cfg      Config
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		api:      openai.NewClientWithConfig(clientCfg),
		cfg:      cfg,
		executor: executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.client.cfg.EmbedModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.client.cfg.Dimensions > 0 {
		req.Dimensions = e.client.cfg.Dimensions
	}

	resp, err := resilience.Call(ctx, e.client.executor, "openai_embed", func(ctx context.Context) (openai.EmbeddingResponse, error) {
		return e.client.api.CreateEmbeddings(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return domain.Embedding{}, resilience.WrapTemporary("openai embed", fmt.Errorf("openai embed: %w", err), classifyOpenAIError)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.Embedding{}, fmt.Errorf("openai embed: empty embedding result")
	}

	model := string(resp.Model)
	if model == "" {
		model = e.client.cfg.EmbedModel
	}
	return domain.Embedding{Vector: resp.Data[0].Embedding, Model: model}, nil
}

type AnswerModel struct {
	client *Client
}

func NewAnswerModel(client *Client) *AnswerModel {
	return &AnswerModel{client: client}
}

func (m *AnswerModel) GenerateAnswer(ctx context.Context, question string, contexts []domain.SynthesisContext) (domain.ModelAnswer, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.client.cfg.ChatModel,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(question, contexts)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := resilience.Call(ctx, m.client.executor, "openai_chat", func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return m.client.api.CreateChatCompletion(ctx, req)
	}, classifyOpenAIError)
	if err != nil {
		return domain.ModelAnswer{}, resilience.WrapTemporary("openai chat", fmt.Errorf("openai chat: %w", err), classifyOpenAIError)
	}
	if len(resp.Choices) == 0 {
		return domain.ModelAnswer{}, fmt.Errorf("openai chat: empty choices")
	}
	return llmjson.ParseModelAnswer(resp.Choices[0].Message.Content), nil
}

const systemPrompt = `You answer questions about Medicaid, long-term care and benefits rules.
Answer only from the numbered context blocks. Cite blocks inline as [n].
If the context is insufficient, say so directly.
Respond with a JSON object: {"answer": string, "cited_indices": [integers]}.`

func buildUserPrompt(question string, contexts []domain.SynthesisContext) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	for _, c := range contexts {
		if c.PageNumber != nil {
			fmt.Fprintf(&b, "[%d] source=%s page=%d\n%s\n\n", c.Index, c.Filename, *c.PageNumber, c.Content)
			continue
		}
		fmt.Fprintf(&b, "[%d] source=%s\n%s\n\n", c.Index, c.Filename, c.Content)
	}
	return b.String()
}

// classifyOpenAIError maps SDK errors onto the shared HTTP classification.
func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTP(&resilience.StatusError{StatusCode: apiErr.HTTPStatusCode})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.ClassifyHTTP(&resilience.StatusError{StatusCode: reqErr.HTTPStatusCode})
	}
	return resilience.ClassifyHTTP(err)
}
