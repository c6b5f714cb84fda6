package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func testCounter() *TokenCounter {
	return newTokenCounterWith(wordEncoder{})
}

func longContent(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d.", i)
	}
	return strings.Join(parts, " ")
}

func scoredChunk(id string, score float64, words int) ScoredChunk {
	content := longContent(words)
	return ScoredChunk{
		ChunkID:    id,
		DocumentID: "doc-" + id,
		Content:    content,
		FinalScore: score,
		TokenCount: words,
	}
}

func TestCompress_LevelsUnderBudget(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{
		scoredChunk("high", 0.9, 100),
		scoredChunk("mid", 0.5, 100),
		scoredChunk("low", 0.2, 100),
	}

	// Budget fits the high chunk verbatim, the mid chunk as a summary,
	// and the low chunk as keywords.
	result, err := svc.Compress(context.Background(), scored, 160)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}

	levels := map[string]CompressionLevel{}
	for _, c := range result.Chunks {
		levels[c.OriginalChunkID] = c.CompressionLevel
	}
	if levels["high"] != LevelFull {
		t.Errorf("high chunk level = %v, want FULL", levels["high"])
	}
	if levels["mid"] != LevelSummary {
		t.Errorf("mid chunk level = %v, want SUMMARY", levels["mid"])
	}
	if levels["low"] != LevelKeywords {
		t.Errorf("low chunk level = %v, want KEYWORDS", levels["low"])
	}

	if result.Stats.FullCount != 1 || result.Stats.SummaryCount != 1 || result.Stats.KeywordsCount != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestCompress_InvariantCompressedLEOriginal(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{
		scoredChunk("a", 0.95, 200),
		scoredChunk("b", 0.6, 150),
		scoredChunk("c", 0.45, 120),
		scoredChunk("d", 0.1, 80),
	}
	result, err := svc.Compress(context.Background(), scored, 220)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	for _, c := range result.Chunks {
		if c.CompressedTokenCount > c.OriginalTokenCount {
			t.Errorf("chunk %s: compressed %d > original %d", c.OriginalChunkID, c.CompressedTokenCount, c.OriginalTokenCount)
		}
	}

	sum := 0
	for _, c := range result.Chunks {
		sum += c.CompressedTokenCount
	}
	if sum > 220 {
		t.Errorf("total compressed tokens %d exceed budget", sum)
	}
}

func TestCompress_ZeroBudgetDropsEverything(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{
		scoredChunk("a", 0.9, 50),
		scoredChunk("b", 0.5, 50),
	}
	result, err := svc.Compress(context.Background(), scored, 0)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Errorf("expected all chunks dropped, got %d", len(result.Chunks))
	}
	if result.Stats.DroppedCount != 2 {
		t.Errorf("DroppedCount = %d, want 2", result.Stats.DroppedCount)
	}
	if result.TotalTokenCount != 0 {
		t.Errorf("TotalTokenCount = %d, want 0", result.TotalTokenCount)
	}
}

func TestCompress_HighScorePreferredForFull(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{
		scoredChunk("weak", 0.72, 100),
		scoredChunk("strong", 0.95, 100),
	}
	// Only one chunk fits verbatim.
	result, err := svc.Compress(context.Background(), scored, 130)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}

	for _, c := range result.Chunks {
		if c.OriginalChunkID == "strong" && c.CompressionLevel != LevelFull {
			t.Errorf("strong chunk level = %v, want FULL", c.CompressionLevel)
		}
		if c.OriginalChunkID == "weak" && c.CompressionLevel == LevelFull {
			t.Error("weak chunk should not get FULL before strong")
		}
	}
}

func TestCompress_SavingsPercent(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{scoredChunk("a", 0.5, 100)}
	result, err := svc.Compress(context.Background(), scored, 40)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	want := 1 - float64(result.Stats.CompressedTokens)/float64(result.Stats.OriginalTokens)
	if result.Stats.SavingsPercent != want {
		t.Errorf("SavingsPercent = %v, want %v", result.Stats.SavingsPercent, want)
	}
	if result.Stats.SavingsPercent <= 0 {
		t.Errorf("expected positive savings, got %v", result.Stats.SavingsPercent)
	}
}

func TestEstimateCompressedSize_MatchesAllocationShape(t *testing.T) {
	svc := NewCompressorService(nil, testCounter())

	scored := []ScoredChunk{
		scoredChunk("high", 0.9, 100),
		scoredChunk("mid", 0.5, 100),
		scoredChunk("low", 0.2, 100),
	}

	estimate := svc.EstimateCompressedSize(scored, 160)
	full, _ := svc.Compress(context.Background(), scored, 160)

	if estimate.Stats.FullCount != full.Stats.FullCount ||
		estimate.Stats.SummaryCount != full.Stats.SummaryCount ||
		estimate.Stats.KeywordsCount != full.Stats.KeywordsCount ||
		estimate.Stats.DroppedCount != full.Stats.DroppedCount {
		t.Errorf("estimate stats %+v != full stats %+v", estimate.Stats, full.Stats)
	}
	for _, c := range estimate.Chunks {
		if c.CompressionLevel != LevelFull && c.Content != "" {
			t.Error("estimate must not generate content")
		}
		if c.CompressedTokenCount > c.OriginalTokenCount {
			t.Errorf("estimate chunk %s breaks size invariant", c.OriginalChunkID)
		}
	}
}

// Summary and keyword ratios are targets, not guarantees; assert tolerance
// bands only.
func TestDeterministicFallbacks(t *testing.T) {
	content := longContent(100)

	summary := firstSentencesSummary(content, 35)
	sTokens := estimateTokens(summary)
	if sTokens == 0 || sTokens > 60 {
		t.Errorf("summary tokens = %d, want within (0, 60]", sTokens)
	}

	keywords := extractKeywords("alpha alpha alpha beta beta gamma delta epsilon the and for", 3)
	parts := strings.Split(keywords, ", ")
	if len(parts) != 3 {
		t.Fatalf("keywords = %q, want 3 entries", keywords)
	}
	if parts[0] != "alpha" || parts[1] != "beta" {
		t.Errorf("keywords order by frequency broken: %q", keywords)
	}
	for _, p := range parts {
		if stopWords[p] {
			t.Errorf("stopword %q leaked into keywords", p)
		}
	}
}

func TestCompress_LLMSummaryUsedWhenAvailable(t *testing.T) {
	llm := &fakeGenAI{response: "short llm summary"}
	svc := NewCompressorService(llm, testCounter())

	scored := []ScoredChunk{scoredChunk("mid", 0.5, 100)}
	result, err := svc.Compress(context.Background(), scored, 40)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(result.Chunks))
	}
	if result.Chunks[0].Content != "short llm summary" {
		t.Errorf("Content = %q, want llm summary", result.Chunks[0].Content)
	}
}

func TestCompress_LLMFailureFallsBack(t *testing.T) {
	llm := &fakeGenAI{err: fmt.Errorf("503 unavailable")}
	svc := NewCompressorService(llm, testCounter())

	scored := []ScoredChunk{scoredChunk("mid", 0.5, 100)}
	result, err := svc.Compress(context.Background(), scored, 40)
	if err != nil {
		t.Fatalf("Compress error: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Content == "" {
		t.Fatal("fallback summary missing")
	}
}
