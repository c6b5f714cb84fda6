package cache

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEmbeddingCache shares query embeddings across replicas via Redis.
// Vectors are stored as little-endian float32 blobs.
type RedisEmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEmbeddingCache creates a RedisEmbeddingCache from a redis URL.
func NewRedisEmbeddingCache(redisURL string, ttl time.Duration) (*RedisEmbeddingCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &RedisEmbeddingCache{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}, nil
}

// Get returns a cached vector. Redis failures read as cache misses.
func (c *RedisEmbeddingCache) Get(ctx context.Context, queryHash string) ([]float32, bool) {
	data, err := c.client.Get(ctx, queryHash).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis embedding cache get failed", "error", err)
		}
		return nil, false
	}
	if len(data)%4 != 0 {
		return nil, false
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, true
}

// Set stores a vector. Redis failures are logged and dropped.
func (c *RedisEmbeddingCache) Set(ctx context.Context, queryHash string, vec []float32) {
	data := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	if err := c.client.Set(ctx, queryHash, data, c.ttl).Err(); err != nil {
		slog.Warn("redis embedding cache set failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *RedisEmbeddingCache) Close() error {
	return c.client.Close()
}
