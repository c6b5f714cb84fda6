// Package cache provides caching for the tailoring pipeline.
//
// The embedding cache stores query→vector mappings to avoid redundant
// embedding calls for repeated queries. Two backends exist: an in-memory
// map and Redis for multi-replica deployments.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EmbeddingCache is the query-embedding cache contract.
type EmbeddingCache interface {
	Get(ctx context.Context, queryHash string) ([]float32, bool)
	Set(ctx context.Context, queryHash string, vec []float32)
}

// DefaultEmbeddingTTL is the cache entry lifetime.
const DefaultEmbeddingTTL = 15 * time.Minute

// MemoryEmbeddingCache caches vectors in-process, keyed by normalized query
// hash. Thread-safe; entries auto-expire after the TTL.
type MemoryEmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]*embeddingEntry
	ttl     time.Duration
	stopCh  chan struct{}
}

type embeddingEntry struct {
	vec       []float32
	expiresAt time.Time
}

// NewMemoryEmbeddingCache creates a MemoryEmbeddingCache and starts
// background cleanup.
func NewMemoryEmbeddingCache(ttl time.Duration) *MemoryEmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	c := &MemoryEmbeddingCache{
		entries: make(map[string]*embeddingEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns a cached embedding vector if present and not expired.
func (c *MemoryEmbeddingCache) Get(_ context.Context, queryHash string) ([]float32, bool) {
	c.mu.RLock()
	entry, ok := c.entries[queryHash]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, queryHash)
		c.mu.Unlock()
		return nil, false
	}
	return entry.vec, true
}

// Set stores an embedding vector.
func (c *MemoryEmbeddingCache) Set(_ context.Context, queryHash string, vec []float32) {
	c.mu.Lock()
	c.entries[queryHash] = &embeddingEntry{
		vec:       vec,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of entries in the cache.
func (c *MemoryEmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop halts the background cleanup goroutine.
func (c *MemoryEmbeddingCache) Stop() {
	close(c.stopCh)
}

// cleanup removes expired entries every 5 minutes.
func (c *MemoryEmbeddingCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// QueryHash returns a deterministic cache key for a query string.
// Normalizes by lowercasing and trimming whitespace before hashing.
func QueryHash(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("emb:%x", h[:16])
}
