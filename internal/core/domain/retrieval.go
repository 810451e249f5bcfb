package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Origin identifies which retrieval source surfaced a chunk.
type Origin uint8

const (
	OriginVector Origin = iota + 1
	OriginLexical
)

func (o Origin) String() string {
	switch o {
	case OriginVector:
		return "vector"
	case OriginLexical:
		return "lexical"
	default:
		return "unknown"
	}
}

func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Origin) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "vector":
		*o = OriginVector
	case "lexical", "bm25":
		*o = OriginLexical
	case "unknown", "":
		*o = 0
	default:
		return fmt.Errorf("unknown origin %q", string(text))
	}
	return nil
}

// OriginSet is a small bitset over Origin values.
type OriginSet uint8

func NewOriginSet(origins ...Origin) OriginSet {
	var s OriginSet
	for _, o := range origins {
		s = s.Add(o)
	}
	return s
}

func (s OriginSet) Add(o Origin) OriginSet { return s | 1<<o }

func (s OriginSet) Has(o Origin) bool { return s&(1<<o) != 0 }

// List returns the members in declaration order.
func (s OriginSet) List() []Origin {
	out := make([]Origin, 0, 2)
	for _, o := range []Origin{OriginVector, OriginLexical} {
		if s.Has(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s OriginSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *OriginSet) UnmarshalJSON(data []byte) error {
	var origins []Origin
	if err := json.Unmarshal(data, &origins); err != nil {
		return err
	}
	*s = NewOriginSet(origins...)
	return nil
}

// SearchResult is one ranked chunk returned by a single retrieval source.
type SearchResult struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	Title      string            `json:"title,omitempty"`
	Content    string            `json:"content"`
	PageNumber *int              `json:"page_number,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float64           `json:"score"`
	Origin     Origin            `json:"origin"`
}

// FusedResult is a chunk after reciprocal rank fusion. One per ChunkID.
type FusedResult struct {
	ChunkID      string            `json:"chunk_id"`
	DocumentID   string            `json:"document_id"`
	Filename     string            `json:"filename"`
	Title        string            `json:"title,omitempty"`
	Content      string            `json:"content"`
	PageNumber   *int              `json:"page_number,omitempty"`
	ChunkIndex   int               `json:"chunk_index"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	VectorScore  *float64          `json:"vector_score,omitempty"`
	LexicalScore *float64          `json:"lexical_score,omitempty"`
	RRFScore     float64           `json:"rrf_score"`
	Origins      OriginSet         `json:"origins"`
}

// RerankedResult carries a score that is only comparable within one rerank call.
type RerankedResult struct {
	FusedResult
	RerankScore float64 `json:"rerank_score"`
}

// RerankDocument is what the listwise scorer sees for each candidate.
type RerankDocument struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// RerankScore is one entry of the scorer's ordering.
type RerankScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type RerankStatus string

const (
	RerankSkipped  RerankStatus = "skipped"
	RerankModel    RerankStatus = "model"
	RerankFallback RerankStatus = "fallback"
)

// Embedding is a query vector with the model that produced it.
type Embedding struct {
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

// RetrievalStats summarises stage cardinalities for one query.
type RetrievalStats struct {
	VectorResults     int          `json:"vector_results"`
	LexicalResults    int          `json:"lexical_results"`
	FusedResults      int          `json:"fused_results"`
	DedupedResults    int          `json:"deduped_results"`
	RerankedResults   int          `json:"reranked_results"`
	ContextResults    int          `json:"context_results"`
	RerankStatus      RerankStatus `json:"rerank_status,omitempty"`
	EmbeddingCacheHit bool         `json:"embedding_cache_hit"`
	ResponseCacheHit  bool         `json:"response_cache_hit"`
}

// QueryLimits bounds each pipeline stage. Zero values take defaults.
type QueryLimits struct {
	RRFK             int
	FuseTopN         int
	RerankTopN       int
	ContextTopC      int
	DedupThreshold   float64
	ResponseCacheTTL time.Duration
	LogTimeout       time.Duration
}
