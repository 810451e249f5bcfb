package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

var (
	_ ports.ResponseCache  = (*Cache)(nil)
	_ ports.EmbeddingCache = (*Cache)(nil)
)

const (
	responsePrefix  = "rag:resp:"
	embeddingPrefix = "rag:emb:"
)

// Cache stores response blobs and query embeddings in Redis. Expiry is left
// to Redis TTLs.
type Cache struct {
	client       *redis.Client
	embeddingTTL time.Duration
}

// NewClient parses a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// New builds a cache. A zero embeddingTTL keeps embeddings without expiry.
func New(client *redis.Client, embeddingTTL time.Duration) *Cache {
	return &Cache{client: client, embeddingTTL: embeddingTTL}
}

func (c *Cache) GetResponse(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, responsePrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get response: %w", err)
	}
	return data, true, nil
}

func (c *Cache) PutResponse(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, responsePrefix+fingerprint, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set response: %w", err)
	}
	return nil
}

func (c *Cache) GetEmbedding(ctx context.Context, fingerprint string) (domain.Embedding, bool, error) {
	data, err := c.client.Get(ctx, embeddingPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Embedding{}, false, nil
	}
	if err != nil {
		return domain.Embedding{}, false, fmt.Errorf("get embedding: %w", err)
	}

	var embedding domain.Embedding
	if err := json.Unmarshal(data, &embedding); err != nil {
		return domain.Embedding{}, false, fmt.Errorf("decode embedding: %w", err)
	}
	return embedding, true, nil
}

func (c *Cache) PutEmbedding(ctx context.Context, fingerprint string, embedding domain.Embedding) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if err := c.client.Set(ctx, embeddingPrefix+fingerprint, data, c.embeddingTTL).Err(); err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return domain.WrapError(domain.ErrUnavailable, "redis ping", err)
	}
	return nil
}
