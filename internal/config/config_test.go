package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("RAG_RERANK_TOP_N", "")
	t.Setenv("RAG_CONTEXT_TOP_C", "")
	t.Setenv("RESPONSE_CACHE_TTL", "")
	t.Setenv("EMBED_PROVIDER", "")
	t.Setenv("RERANK_PROVIDER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGRerankTopN != 10 {
		t.Fatalf("expected default rerank top n 10, got %d", cfg.RAGRerankTopN)
	}
	if cfg.RAGContextTopC != 5 {
		t.Fatalf("expected default context top c 5, got %d", cfg.RAGContextTopC)
	}
	if cfg.ResponseCacheTTL != time.Hour {
		t.Fatalf("expected default response cache ttl 1h, got %v", cfg.ResponseCacheTTL)
	}
	if cfg.RAGConfidenceRankWeight != 0.6 || cfg.RAGConfidenceCiteWeight != 0.4 {
		t.Fatalf("unexpected confidence weights %v/%v", cfg.RAGConfidenceRankWeight, cfg.RAGConfidenceCiteWeight)
	}
	if cfg.EmbedProvider != "ollama" || cfg.RerankProvider != "ollama" {
		t.Fatalf("unexpected providers %q/%q", cfg.EmbedProvider, cfg.RerankProvider)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_FUSION_RRF_K", "75")
	t.Setenv("RAG_DEDUP_THRESHOLD", "0.85")
	t.Setenv("RESPONSE_CACHE_TTL", "90")
	t.Setenv("RERANK_TIMEOUT", "3s")
	t.Setenv("LEXICAL_BACKEND", "Qdrant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGFusionRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGDedupThreshold != 0.85 {
		t.Fatalf("expected dedup threshold 0.85, got %v", cfg.RAGDedupThreshold)
	}
	if cfg.ResponseCacheTTL != 90*time.Second {
		t.Fatalf("expected plain seconds to parse, got %v", cfg.ResponseCacheTTL)
	}
	if cfg.RerankTimeout != 3*time.Second {
		t.Fatalf("expected rerank timeout 3s, got %v", cfg.RerankTimeout)
	}
	if cfg.LexicalBackend != "qdrant" {
		t.Fatalf("expected lowercased backend, got %q", cfg.LexicalBackend)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RAG_VECTOR_TOP_K", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RAGVectorTopK != 20 {
		t.Fatalf("expected fallback 20, got %d", cfg.RAGVectorTopK)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RERANK_PROVIDER", "magic")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRequiresRerankURLForHTTPProvider(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("RERANK_PROVIDER", "http")
	t.Setenv("RERANK_HTTP_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
API_PORT: 9000
RAG_CONTEXT_TOP_C: 3
QDRANT_COLLECTION: ${TEST_COLLECTION:-fallback_chunks}
OLLAMA_URL: ${TEST_OLLAMA_URL}
LOG_LEVEL: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TEST_COLLECTION", "")
	t.Setenv("TEST_OLLAMA_URL", "http://ollama:11434")
	t.Setenv("API_PORT", "")
	t.Setenv("RAG_CONTEXT_TOP_C", "")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("OLLAMA_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" {
		t.Fatalf("expected port from file, got %q", cfg.APIPort)
	}
	if cfg.RAGContextTopC != 3 {
		t.Fatalf("expected context top c from file, got %d", cfg.RAGContextTopC)
	}
	if cfg.QdrantCollection != "fallback_chunks" {
		t.Fatalf("expected default expansion, got %q", cfg.QdrantCollection)
	}
	if cfg.OllamaURL != "http://ollama:11434" {
		t.Fatalf("expected env expansion, got %q", cfg.OllamaURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected environment to win over file, got %q", cfg.LogLevel)
	}
}

func TestLoadFailsOnMissingOverlay(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
