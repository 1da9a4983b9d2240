package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes embeddings by exact text. Failed calls are not cached.
type CachedEmbedder struct {
	inner  EmbedderClient
	cache  *lru.Cache[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedEmbedder(inner EmbedderClient, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// EmbeddingModel forwards the wrapped embedder's model name, if it has one.
func (c *CachedEmbedder) EmbeddingModel() string {
	if m, ok := c.inner.(interface{ EmbeddingModel() string }); ok {
		return m.EmbeddingModel()
	}
	return ""
}

func (c *CachedEmbedder) Stats() (hits, misses int64, size int) {
	return c.hits.Load(), c.misses.Load(), c.cache.Len()
}
