package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, capacity int, embeddingTTL time.Duration, now func() time.Time) *Cache {
	t.Helper()
	cache, err := New(capacity, embeddingTTL, now)
	require.NoError(t, err)
	return cache
}

func TestResponseExpiresAfterTTL(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, 8, 0, clock.Now)
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "fp", []byte("payload"), time.Minute))

	got, ok, err := cache.GetResponse(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))

	clock.Advance(time.Minute)
	_, ok, err = cache.GetResponse(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(t, 2, 0, nil)
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "a", []byte("1"), 0))
	require.NoError(t, cache.PutResponse(ctx, "b", []byte("2"), 0))
	_, ok, _ := cache.GetResponse(ctx, "a")
	require.True(t, ok)

	require.NoError(t, cache.PutResponse(ctx, "c", []byte("3"), 0))

	_, ok, _ = cache.GetResponse(ctx, "b")
	assert.False(t, ok, "b should be evicted")
	_, ok, _ = cache.GetResponse(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = cache.GetResponse(ctx, "c")
	assert.True(t, ok)
}

func TestEmbeddingExpiresAfterConfiguredTTL(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, 8, time.Hour, clock.Now)
	ctx := context.Background()

	require.NoError(t, cache.PutEmbedding(ctx, "fp", domain.Embedding{Vector: []float32{1}}))
	clock.Advance(59 * time.Minute)
	_, ok, _ := cache.GetEmbedding(ctx, "fp")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = cache.GetEmbedding(ctx, "fp")
	assert.False(t, ok)
}

func TestNewDefaultsCapacity(t *testing.T) {
	cache := newTestCache(t, 0, 0, nil)
	ctx := context.Background()
	for i := 0; i < defaultCapacity+1; i++ {
		require.NoError(t, cache.PutResponse(ctx, fmt.Sprintf("fp-%d", i), []byte("x"), 0))
	}
	assert.Equal(t, defaultCapacity, cache.Len())
}

func TestEmbeddingIsCopied(t *testing.T) {
	cache := newTestCache(t, 4, time.Hour, nil)
	ctx := context.Background()

	vector := []float32{1, 2, 3}
	require.NoError(t, cache.PutEmbedding(ctx, "fp", domain.Embedding{Vector: vector, Model: "m"}))
	vector[0] = 99

	got, ok, err := cache.GetEmbedding(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)
	assert.Equal(t, "m", got.Model)
}

func TestResponseAndEmbeddingKeysDoNotCollide(t *testing.T) {
	cache := newTestCache(t, 4, 0, nil)
	ctx := context.Background()

	require.NoError(t, cache.PutResponse(ctx, "same", []byte("r"), 0))
	require.NoError(t, cache.PutEmbedding(ctx, "same", domain.Embedding{Vector: []float32{1}}))

	payload, ok, _ := cache.GetResponse(ctx, "same")
	assert.True(t, ok)
	assert.Equal(t, "r", string(payload))
	_, ok, _ = cache.GetEmbedding(ctx, "same")
	assert.True(t, ok)
}
