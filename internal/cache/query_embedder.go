package cache

import (
	"context"

	"github.com/connexus-ai/tailor-backend/internal/service"
)

// CachedQueryEmbedder decorates a QueryEmbedder with the embedding cache.
// Cache misses fall through to the inner embedder and populate the cache.
type CachedQueryEmbedder struct {
	inner service.QueryEmbedder
	cache EmbeddingCache
}

// NewCachedQueryEmbedder wraps inner with cache.
func NewCachedQueryEmbedder(inner service.QueryEmbedder, cache EmbeddingCache) *CachedQueryEmbedder {
	return &CachedQueryEmbedder{inner: inner, cache: cache}
}

var _ service.QueryEmbedder = (*CachedQueryEmbedder)(nil)

func (c *CachedQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := QueryHash(text)
	if vec, ok := c.cache.Get(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, vec)
	return vec, nil
}
