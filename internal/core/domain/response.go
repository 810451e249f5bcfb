package domain

import "time"

// Citation points the reader back at a chunk used in the answer.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Title      string `json:"title,omitempty"`
	PageNumber *int   `json:"page_number,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Excerpt    string `json:"excerpt"`
}

// SynthesisContext is one numbered context block handed to the answer model.
type SynthesisContext struct {
	Index      int    `json:"index"`
	Content    string `json:"content"`
	Filename   string `json:"filename"`
	PageNumber *int   `json:"page_number,omitempty"`
}

// ModelAnswer is the raw answer-model output before citation resolution.
type ModelAnswer struct {
	Answer       string `json:"answer"`
	CitedIndices []int  `json:"cited_indices"`
}

// Synthesis is the answer with resolved citations and a confidence score.
type Synthesis struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence int        `json:"confidence"`
}

type QueryOptions struct {
	UseCache bool
}

type QueryResponse struct {
	QueryID        string          `json:"query_id"`
	Answer         string          `json:"answer"`
	Citations      []Citation      `json:"citations"`
	Confidence     int             `json:"confidence"`
	LatencyMs      int64           `json:"latency_ms"`
	RetrievalStats RetrievalStats  `json:"retrieval_stats"`
	Freshness      FreshnessInfo   `json:"freshness"`
	Guardrail      GuardrailResult `json:"guardrail"`
	Cached         bool            `json:"cached"`
}

// CachedAnswer is the response-cache payload. Answer holds the synthesis text
// before any guardrail or freshness section is appended.
type CachedAnswer struct {
	Answer         string         `json:"answer"`
	Citations      []Citation     `json:"citations"`
	Confidence     int            `json:"confidence"`
	RetrievalStats RetrievalStats `json:"retrieval_stats"`
	CreatedAt      time.Time      `json:"created_at"`
}

type QueryLogEntry struct {
	QueryID           string         `json:"query_id"`
	QueryText         string         `json:"query_text"`
	Stats             RetrievalStats `json:"stats"`
	LatencyMs         int64          `json:"latency_ms"`
	HasAnswer         bool           `json:"has_answer"`
	Confidence        int            `json:"confidence"`
	GuardrailCategory string         `json:"guardrail_category,omitempty"`
	CacheHit          bool           `json:"cache_hit"`
	CreatedAt         time.Time      `json:"created_at"`
}
