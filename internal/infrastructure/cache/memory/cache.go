// Package memory is the in-process cache used when Redis is not configured.
package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

var (
	_ ports.ResponseCache  = (*Cache)(nil)
	_ ports.EmbeddingCache = (*Cache)(nil)
)

const (
	defaultCapacity = 1024

	responsePrefix  = "resp:"
	embeddingPrefix = "emb:"
)

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a size-bounded LRU with per-entry expiry. Responses and
// embeddings share one capacity under distinct key prefixes. Expired entries
// are dropped when read and otherwise age out through LRU eviction.
type Cache struct {
	items        *lru.Cache[string, entry]
	embeddingTTL time.Duration
	now          func() time.Time
}

func New(capacity int, embeddingTTL time.Duration, now func() time.Time) (*Cache, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	items, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Cache{items: items, embeddingTTL: embeddingTTL, now: now}, nil
}

func (c *Cache) GetResponse(_ context.Context, fingerprint string) ([]byte, bool, error) {
	v, ok := c.get(responsePrefix + fingerprint)
	if !ok {
		return nil, false, nil
	}
	payload, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (c *Cache) PutResponse(_ context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	c.put(responsePrefix+fingerprint, append([]byte(nil), payload...), ttl)
	return nil
}

func (c *Cache) GetEmbedding(_ context.Context, fingerprint string) (domain.Embedding, bool, error) {
	v, ok := c.get(embeddingPrefix + fingerprint)
	if !ok {
		return domain.Embedding{}, false, nil
	}
	embedding, ok := v.(domain.Embedding)
	return embedding, ok, nil
}

func (c *Cache) PutEmbedding(_ context.Context, fingerprint string, embedding domain.Embedding) error {
	embedding.Vector = append([]float32(nil), embedding.Vector...)
	c.put(embeddingPrefix+fingerprint, embedding, c.embeddingTTL)
	return nil
}

// Len counts entries including expired ones not yet read or evicted.
func (c *Cache) Len() int {
	return c.items.Len()
}

func (c *Cache) get(key string) (any, bool) {
	e, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.items.Remove(key)
		return nil, false
	}
	return e.value, true
}

// put stores value; ttl <= 0 means no expiry.
func (c *Cache) put(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.items.Add(key, e)
}
