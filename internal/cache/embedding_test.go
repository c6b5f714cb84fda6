package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryEmbeddingCache_SetGet(t *testing.T) {
	c := NewMemoryEmbeddingCache(time.Minute)
	defer c.Stop()

	key := QueryHash("How do I add a POST endpoint?")
	vec := []float32{0.1, 0.2, 0.3}

	if _, ok := c.Get(context.Background(), key); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set(context.Background(), key, vec)
	got, ok := c.Get(context.Background(), key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 3 || got[0] != 0.1 {
		t.Errorf("got = %v", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestMemoryEmbeddingCache_Expiry(t *testing.T) {
	c := NewMemoryEmbeddingCache(10 * time.Millisecond)
	defer c.Stop()

	key := QueryHash("query")
	c.Set(context.Background(), key, []float32{1})

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(context.Background(), key); ok {
		t.Error("expired entry should miss")
	}
}

func TestQueryHash_Normalization(t *testing.T) {
	a := QueryHash("  Hello World  ")
	b := QueryHash("hello world")
	if a != b {
		t.Error("hash should normalize case and whitespace")
	}
	if QueryHash("hello") == QueryHash("goodbye") {
		t.Error("distinct queries should hash differently")
	}
}

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.vec, nil
}

func TestCachedQueryEmbedder(t *testing.T) {
	mem := NewMemoryEmbeddingCache(time.Minute)
	defer mem.Stop()

	inner := &countingEmbedder{vec: []float32{0.5, 0.5}}
	cached := NewCachedQueryEmbedder(inner, mem)

	for i := 0; i < 3; i++ {
		vec, err := cached.EmbedQuery(context.Background(), "same query")
		if err != nil {
			t.Fatalf("EmbedQuery error: %v", err)
		}
		if len(vec) != 2 {
			t.Errorf("vec = %v", vec)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (cached afterwards)", inner.calls)
	}
}

func TestCachedQueryEmbedder_ErrorNotCached(t *testing.T) {
	mem := NewMemoryEmbeddingCache(time.Minute)
	defer mem.Stop()

	inner := &countingEmbedder{err: fmt.Errorf("down")}
	cached := NewCachedQueryEmbedder(inner, mem)

	if _, err := cached.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if mem.Len() != 0 {
		t.Error("failed embeddings must not be cached")
	}
}
