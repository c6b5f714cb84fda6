package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type CompressionLevel string

const (
	LevelFull     CompressionLevel = "FULL"
	LevelSummary  CompressionLevel = "SUMMARY"
	LevelKeywords CompressionLevel = "KEYWORDS"
)

const (
	fullThreshold    = 0.7
	summaryThreshold = 0.4

	// summaryRatio and keywordsRatio are the target compressed sizes as a
	// fraction of the original token count.
	summaryRatio  = 0.35
	keywordsRatio = 0.10

	keywordsTopK = 12
)

// CompressedChunk is one chunk after level allocation.
// Invariant: CompressedTokenCount <= OriginalTokenCount.
type CompressedChunk struct {
	OriginalChunkID      string           `json:"originalChunkId"`
	DocumentID           string           `json:"documentId"`
	CompressionLevel     CompressionLevel `json:"compressionLevel"`
	Content              string           `json:"content"`
	OriginalTokenCount   int              `json:"originalTokenCount"`
	CompressedTokenCount int              `json:"compressedTokenCount"`
	RelevanceScore       float64          `json:"relevanceScore"`
}

// CompressionStats reports the allocation outcome.
type CompressionStats struct {
	FullCount      int     `json:"fullCount"`
	SummaryCount   int     `json:"summaryCount"`
	KeywordsCount  int     `json:"keywordsCount"`
	DroppedCount   int     `json:"droppedCount"`
	OriginalTokens int     `json:"originalTokens"`
	CompressedTokens int   `json:"compressedTokens"`
	SavingsPercent float64 `json:"savingsPercent"`
}

// CompressionResult is the output of a compression pass.
type CompressionResult struct {
	Chunks          []CompressedChunk `json:"chunks"`
	TotalTokenCount int               `json:"totalTokenCount"`
	Stats           CompressionStats  `json:"stats"`
}

// CompressorService shrinks scored chunks to fit a token budget using three
// fidelity levels plus drop. Summaries and keywords come from an LLM helper
// when configured, with a deterministic fallback that is always available.
type CompressorService struct {
	llm     GenAIClient // nil = deterministic fallback only
	counter *TokenCounter
}

// NewCompressorService creates a CompressorService. llm may be nil.
func NewCompressorService(llm GenAIClient, counter *TokenCounter) *CompressorService {
	return &CompressorService{llm: llm, counter: counter}
}

// Compress allocates each chunk to the highest-fidelity level that fits the
// remaining budget, walking chunks in descending finalScore order.
func (s *CompressorService) Compress(ctx context.Context, scored []ScoredChunk, totalTokenBudget int) (*CompressionResult, error) {
	if totalTokenBudget < 0 {
		return nil, fmt.Errorf("service.Compress: negative budget")
	}
	return s.compress(ctx, scored, totalTokenBudget, false), nil
}

// EstimateCompressedSize performs the same allocation using only the token
// counter — no LLM calls — and returns the identical stats structure. Used
// by the preview pipeline.
func (s *CompressorService) EstimateCompressedSize(scored []ScoredChunk, totalTokenBudget int) *CompressionResult {
	return s.compress(context.Background(), scored, totalTokenBudget, true)
}

func (s *CompressorService) compress(ctx context.Context, scored []ScoredChunk, budget int, estimateOnly bool) *CompressionResult {
	ordered := make([]ScoredChunk, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FinalScore != ordered[j].FinalScore {
			return ordered[i].FinalScore > ordered[j].FinalScore
		}
		return ordered[i].ChunkID < ordered[j].ChunkID
	})

	result := &CompressionResult{}
	remaining := budget

	for _, sc := range ordered {
		original := s.counter.CountTokens(sc.Content)
		result.Stats.OriginalTokens += original

		summarySize := ratioTokens(original, summaryRatio)
		keywordsSize := ratioTokens(original, keywordsRatio)

		switch {
		case sc.FinalScore >= fullThreshold && original <= remaining:
			result.Chunks = append(result.Chunks, CompressedChunk{
				OriginalChunkID:      sc.ChunkID,
				DocumentID:           sc.DocumentID,
				CompressionLevel:     LevelFull,
				Content:              sc.Content,
				OriginalTokenCount:   original,
				CompressedTokenCount: original,
				RelevanceScore:       sc.FinalScore,
			})
			remaining -= original
			result.Stats.FullCount++

		case sc.FinalScore >= summaryThreshold && summarySize <= remaining && summarySize > 0:
			cc := CompressedChunk{
				OriginalChunkID:    sc.ChunkID,
				DocumentID:         sc.DocumentID,
				CompressionLevel:   LevelSummary,
				OriginalTokenCount: original,
				RelevanceScore:     sc.FinalScore,
			}
			if estimateOnly {
				cc.CompressedTokenCount = summarySize
			} else {
				cc.Content, cc.CompressedTokenCount = s.fitToSize(s.summarize(ctx, sc.Content, summarySize), summarySize, original)
			}
			remaining -= cc.CompressedTokenCount
			result.Chunks = append(result.Chunks, cc)
			result.Stats.SummaryCount++

		case keywordsSize <= remaining && keywordsSize > 0:
			cc := CompressedChunk{
				OriginalChunkID:    sc.ChunkID,
				DocumentID:         sc.DocumentID,
				CompressionLevel:   LevelKeywords,
				OriginalTokenCount: original,
				RelevanceScore:     sc.FinalScore,
			}
			if estimateOnly {
				cc.CompressedTokenCount = keywordsSize
			} else {
				k := min(keywordsTopK, keywordsSize)
				cc.Content, cc.CompressedTokenCount = s.fitToSize(extractKeywords(sc.Content, k), keywordsSize, original)
			}
			remaining -= cc.CompressedTokenCount
			result.Chunks = append(result.Chunks, cc)
			result.Stats.KeywordsCount++

		default:
			result.Stats.DroppedCount++
		}
	}

	for _, cc := range result.Chunks {
		result.Stats.CompressedTokens += cc.CompressedTokenCount
	}
	result.TotalTokenCount = result.Stats.CompressedTokens
	if result.Stats.OriginalTokens > 0 {
		result.Stats.SavingsPercent = 1 - float64(result.Stats.CompressedTokens)/float64(result.Stats.OriginalTokens)
	}
	return result
}

// fitToSize clips content so its counted size never exceeds the level's
// budget allocation, keeping the compressed <= original invariant.
func (s *CompressorService) fitToSize(content string, size, original int) (string, int) {
	tokens := s.counter.CountTokens(content)
	if tokens > size {
		content = truncateWords(content, size)
		tokens = s.counter.CountTokens(content)
	}
	if tokens > size {
		tokens = size
	}
	return content, min(tokens, original)
}

const summarizerSystemPrompt = `You compress a document excerpt for a retrieval context.
Summarize the passage in at most the requested number of tokens, keeping
concrete identifiers, numbers, and names. Respond with only the summary.`

// summarize produces a summary bounded by targetTokens. LLM failure falls
// back to the deterministic first-sentences summary.
func (s *CompressorService) summarize(ctx context.Context, content string, targetTokens int) string {
	if s.llm != nil {
		prompt := fmt.Sprintf("Token limit: %d\n\n%s", targetTokens, content)
		out, err := s.llm.GenerateContent(ctx, summarizerSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(out) != "" {
			return truncateToTokens(strings.TrimSpace(out), targetTokens, s.counter)
		}
		if err != nil {
			slog.Warn("llm summary failed, using sentence fallback", "error", err)
		}
	}
	return firstSentencesSummary(content, targetTokens)
}

// firstSentencesSummary keeps leading sentences until the target is reached.
func firstSentencesSummary(content string, targetTokens int) string {
	var b strings.Builder
	for _, sentence := range splitSentences(content) {
		candidate := b.String()
		if candidate != "" {
			candidate += " "
		}
		candidate += sentence
		if estimateTokens(candidate) > targetTokens && b.Len() > 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		if estimateTokens(b.String()) >= targetTokens {
			break
		}
	}
	if b.Len() == 0 {
		// A single very long sentence: hard-truncate on words.
		return truncateWords(content, targetTokens)
	}
	return b.String()
}

// extractKeywords returns the top-k content words by frequency, stopword
// filtered, joined by commas. Order is frequency desc, then alphabetical.
func extractKeywords(content string, k int) string {
	freq := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}`")
		if len(w) < 3 || stopWords[w] {
			continue
		}
		freq[w]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > k {
		words = words[:k]
	}
	return strings.Join(words, ", ")
}

func ratioTokens(original int, ratio float64) int {
	n := int(float64(original) * ratio)
	if n < 1 && original > 0 {
		n = 1
	}
	return n
}

// truncateToTokens clips text so its accurate count is at most maxTokens.
func truncateToTokens(text string, maxTokens int, counter *TokenCounter) string {
	if counter.CountTokens(text) <= maxTokens {
		return text
	}
	return truncateWords(text, maxTokens)
}

// truncateWords clips text to approximately maxTokens using the estimate
// heuristic.
func truncateWords(text string, maxTokens int) string {
	words := strings.Fields(text)
	n := int(float64(maxTokens) / estimateTokensPerWord)
	if n < 1 {
		n = 1
	}
	if n >= len(words) {
		return text
	}
	return strings.Join(words[:n], " ")
}
