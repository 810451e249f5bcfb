package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/infrastructure/resilience"
)

// Options name the vectors inside the collection. An empty DenseVector
// targets the unnamed default vector.
type Options struct {
	DenseVector  string
	SparseVector string
	Timeout      time.Duration
}

type Client struct {
	baseURL      string
	collection   string
	denseVector  string
	sparseVector string
	httpClient   *http.Client
	executor     *resilience.Executor
}

func New(baseURL, collection string, opts Options, executor *resilience.Executor) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(opts.SparseVector) == "" {
		opts.SparseVector = "text_sparse"
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		collection:   collection,
		denseVector:  strings.TrimSpace(opts.DenseVector),
		sparseVector: strings.TrimSpace(opts.SparseVector),
		httpClient:   &http.Client{Timeout: opts.Timeout},
		executor:     executor,
	}
}

// Search runs dense similarity search, best match first.
func (c *Client) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.SearchResult, error) {
	var vector any = queryVector
	if c.denseVector != "" {
		vector = map[string]any{"name": c.denseVector, "vector": queryVector}
	}
	return c.search(ctx, "search", map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	})
}

// SearchLexical scores the query as a hashed BM25-style sparse vector against
// the sparse index.
func (c *Client) SearchLexical(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return []domain.SearchResult{}, nil
	}
	return c.search(ctx, "search_sparse", map[string]any{
		"vector": map[string]any{
			"name":   c.sparseVector,
			"vector": sparse,
		},
		"limit":        topK,
		"with_payload": true,
	})
}

// Ping checks that the collection exists.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrUnavailable, "qdrant ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrUnavailable, "qdrant ping", c.statusError("ping", resp))
	}
	return nil
}

type searchHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (c *Client) search(ctx context.Context, operation string, reqBody map[string]any) ([]domain.SearchResult, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)

	hits, err := resilience.Call(ctx, c.executor, "qdrant_"+operation, func(ctx context.Context) ([]searchHit, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, c.statusError(operation, resp)
		}

		var searchResp struct {
			Result []searchHit `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", operation, err)
		}
		return searchResp.Result, nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("qdrant "+operation, err, resilience.ClassifyHTTP)
	}

	out := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		out = append(out, hitToResult(hit))
	}
	return out, nil
}

func (c *Client) statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &resilience.StatusError{
		Service:    "qdrant",
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

var reservedPayloadKeys = map[string]struct{}{
	"chunk_id": {}, "doc_id": {}, "filename": {}, "title": {},
	"text": {}, "page_number": {}, "chunk_index": {},
}

func hitToResult(hit searchHit) domain.SearchResult {
	chunkID := getStringPayload(hit.Payload, "chunk_id")
	if chunkID == "" {
		chunkID = pointID(hit.ID)
	}

	res := domain.SearchResult{
		ChunkID:    chunkID,
		DocumentID: getStringPayload(hit.Payload, "doc_id"),
		Filename:   getStringPayload(hit.Payload, "filename"),
		Title:      getStringPayload(hit.Payload, "title"),
		Content:    getStringPayload(hit.Payload, "text"),
		ChunkIndex: getIntPayload(hit.Payload, "chunk_index", 0),
		Score:      hit.Score,
	}
	if page := getIntPayload(hit.Payload, "page_number", -1); page >= 0 {
		res.PageNumber = &page
	}

	for key, value := range hit.Payload {
		if _, reserved := reservedPayloadKeys[key]; reserved {
			continue
		}
		if res.Metadata == nil {
			res.Metadata = make(map[string]string)
		}
		res.Metadata[key] = fmt.Sprintf("%v", value)
	}
	return res
}

// pointID renders numeric and UUID point ids alike.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string, fallback int) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
