package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

func TestEmbedderEmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, EmbedModel: "text-embedding-3-small"}, nil)
	emb, err := NewEmbedder(client).EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(emb.Vector) != 3 || emb.Model != "text-embedding-3-small" {
		t.Fatalf("unexpected embedding %+v", emb)
	}
}

func TestAnswerModelParsesChatJSON(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\":\"Yes [1].\",\"cited_indices\":[1]}"}}]}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL, ChatModel: "gpt-4o-mini"}, nil)
	out, err := NewAnswerModel(client).GenerateAnswer(context.Background(), "eligible?", []domain.SynthesisContext{
		{Index: 1, Content: "rule text", Filename: "manual.pdf"},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if out.Answer != "Yes [1]." || len(out.CitedIndices) != 1 {
		t.Fatalf("unexpected answer %+v", out)
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model %v", captured["model"])
	}
	raw, _ := json.Marshal(captured["messages"])
	if !strings.Contains(string(raw), "[1] source=manual.pdf") {
		t.Fatalf("expected numbered context in prompt, got %s", raw)
	}
}

func TestAnswerModelMarksServerErrorsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "k", BaseURL: server.URL, ChatModel: "m"}, nil)
	_, err := NewAnswerModel(client).GenerateAnswer(context.Background(), "q", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
