package service

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// tokenCacheSize bounds the memoization map for accurate counts.
	tokenCacheSize = 1000
	// estimateTokensPerWord is the heuristic multiplier for estimateTokens.
	estimateTokensPerWord = 1.3
)

// bpeEncoder is the tokenizer contract; satisfied by *tiktoken.Tiktoken.
type bpeEncoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TokenCounter produces token counts for text. CountTokens is an accurate
// BPE count against the cl100k_base encoding, memoized by content hash in a
// bounded insertion-ordered map. EstimateTokens is a fast heuristic used
// where calibration is not required.
type TokenCounter struct {
	enc bpeEncoder

	mu    sync.Mutex
	cache map[string]int
	order []string // insertion order; eviction drops the oldest entry
}

// NewTokenCounter creates a TokenCounter backed by the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("service.NewTokenCounter: %w", err)
	}
	return newTokenCounterWith(enc), nil
}

// newTokenCounterWith wires an explicit encoder; tests substitute a fake.
func newTokenCounterWith(enc bpeEncoder) *TokenCounter {
	return &TokenCounter{
		enc:   enc,
		cache: make(map[string]int, tokenCacheSize),
	}
}

// CountTokens returns the exact BPE token count for text.
func (c *TokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	key := contentHash(text)

	c.mu.Lock()
	if n, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return n
	}
	c.mu.Unlock()

	n := len(c.enc.Encode(text, nil, nil))

	c.mu.Lock()
	if _, ok := c.cache[key]; !ok {
		if len(c.order) >= tokenCacheSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.cache, oldest)
		}
		c.cache[key] = n
		c.order = append(c.order, key)
	}
	c.mu.Unlock()

	return n
}

// EstimateTokens returns ceil(wordCount * 1.3), a fast whitespace heuristic.
func (c *TokenCounter) EstimateTokens(text string) int {
	return estimateTokens(text)
}

// CacheLen returns the number of memoized entries.
func (c *TokenCounter) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// estimateTokens is the package-level heuristic shared by components that
// only need a rough count (chunk sizing, synthesis metadata).
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * estimateTokensPerWord))
}

// contentHash returns a hex SHA-256 digest of text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h[:])
}
