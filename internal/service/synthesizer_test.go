package service

import (
	"strings"
	"testing"
)

func compressed(id, doc, content string, score float64) CompressedChunk {
	return CompressedChunk{
		OriginalChunkID:      id,
		DocumentID:           doc,
		CompressionLevel:     LevelFull,
		Content:              content,
		OriginalTokenCount:   estimateTokens(content),
		CompressedTokenCount: estimateTokens(content),
		RelevanceScore:       score,
	}
}

func TestSynthesizer_DedupIdempotent(t *testing.T) {
	chunks := []CompressedChunk{
		compressed("a", "d1", "configure the router to use middleware for request validation", 0.9),
		compressed("b", "d2", "configure the router to use middleware for request validation today", 0.5),
		compressed("c", "d3", "entirely different topic about storage engines and disk layout", 0.7),
	}

	once := dedupChunks(chunks)
	twice := dedupChunks(once)
	if len(once) != len(twice) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(once), len(twice))
	}

	// The near-duplicate with the lower score is the one removed.
	ids := map[string]bool{}
	for _, c := range once {
		ids[c.OriginalChunkID] = true
	}
	if !ids["a"] || ids["b"] || !ids["c"] {
		t.Errorf("kept = %v, want a and c", ids)
	}

	// Any two retained chunks are at most 0.6 similar.
	for i := range once {
		for j := i + 1; j < len(once); j++ {
			sim := jaccard(wordSet(once[i].Content), wordSet(once[j].Content))
			if sim > jaccardDedupThreshold {
				t.Errorf("retained pair %s/%s similarity %v > %v",
					once[i].OriginalChunkID, once[j].OriginalChunkID, sim, jaccardDedupThreshold)
			}
		}
	}
}

func TestSynthesizer_ContradictionDetected(t *testing.T) {
	svc := NewSynthesizerService()

	chunks := []CompressedChunk{
		compressed("a", "d1", "the default connection timeout: 30 seconds applies to idle clients", 0.8),
		compressed("b", "d2", "after the update the timeout: 60 seconds value ships in config version two", 0.7),
	}
	ctx := svc.Synthesize(chunks, nil, analysisWith(TaskAnalyze, DomainBackend), nil)

	if ctx.ContradictionCount != 1 {
		t.Fatalf("ContradictionCount = %d, want 1", ctx.ContradictionCount)
	}

	found := false
	for _, b := range ctx.Blocks {
		for _, c := range b.Contradictions {
			found = true
			if !strings.Contains(c.Claim, "timeout") {
				t.Errorf("claim = %q", c.Claim)
			}
			if c.Alternative == c.Claim {
				t.Error("alternative must differ from claim")
			}
		}
	}
	if !found {
		t.Error("no block carries the contradiction")
	}
}

func TestSynthesizer_SectionClassification(t *testing.T) {
	svc := NewSynthesizerService()

	chunks := []CompressedChunk{
		compressed("code", "d1", "example usage:\n```go\nrouter.Post(\"/items\", handler)\n```", 0.9),
		compressed("core", "d2", "use the middleware chain to register the endpoint handler on the api server", 0.9),
		compressed("bg", "d3", "historically this pattern originated in early web frameworks", 0.3),
	}
	ctx := svc.Synthesize(chunks, nil, analysisWith(TaskCoding, DomainBackend), DocTitles{"d1": "guide.md"})

	sections := map[string]string{}
	for _, b := range ctx.Blocks {
		sections[b.Sources[0].SourceID] = b.Section
	}
	if sections["d1"] != SectionExamples {
		t.Errorf("code chunk section = %q, want Examples", sections["d1"])
	}
	if sections["d2"] != SectionCoreImplementation {
		t.Errorf("core chunk section = %q, want Core Implementation", sections["d2"])
	}
	if sections["d3"] != SectionBackground {
		t.Errorf("background chunk section = %q, want Background Context", sections["d3"])
	}

	// Section order property: populated sections appear in the fixed order.
	want := []string{SectionCoreImplementation, SectionExamples, SectionBackground}
	if len(ctx.Sections) != len(want) {
		t.Fatalf("sections = %v", ctx.Sections)
	}
	for i := range want {
		if ctx.Sections[i] != want[i] {
			t.Errorf("sections[%d] = %q, want %q", i, ctx.Sections[i], want[i])
		}
	}
}

func TestSynthesizer_WebResultsMergedAndDeduped(t *testing.T) {
	svc := NewSynthesizerService()

	chunks := []CompressedChunk{
		compressed("a", "d1", "argon2 is a memory hard password hashing function with three variants", 0.9),
	}
	web := []WebResult{
		{Title: "Argon2 RFC", URL: "https://example.com/rfc", Snippet: "argon2 is a memory hard password hashing function with three variants", Score: 0.9},
		{Title: "Fresh take", URL: "https://example.com/fresh", Snippet: "benchmark results comparing bcrypt scrypt and argon2 throughput numbers", Score: 0.8},
	}
	ctx := svc.Synthesize(chunks, web, analysisWith(TaskResearch, DomainSecurity), nil)

	var related []SynthesizedBlock
	for _, b := range ctx.Blocks {
		if b.Section == SectionRelatedResources {
			related = append(related, b)
		}
	}
	if len(related) != 1 {
		t.Fatalf("related blocks = %d, want 1 (duplicate skipped)", len(related))
	}
	if related[0].Sources[0].URL != "https://example.com/fresh" {
		t.Errorf("kept web block = %q", related[0].Sources[0].URL)
	}
	if related[0].Sources[0].AuthorityScore != 0.5 {
		t.Errorf("web authority = %v, want 0.5", related[0].Sources[0].AuthorityScore)
	}
	if ctx.SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2", ctx.SourceCount)
	}
}

func TestSynthesizer_EmptyInput(t *testing.T) {
	svc := NewSynthesizerService()

	ctx := svc.Synthesize(nil, nil, analysisWith(TaskOther, DomainGeneral), nil)
	if len(ctx.Blocks) != 0 || len(ctx.Sections) != 0 {
		t.Errorf("empty synthesis: %+v", ctx)
	}
	if ctx.TotalTokenCount != 0 || ctx.SourceCount != 0 {
		t.Errorf("empty synthesis metadata: %+v", ctx)
	}
}

func TestAuthorityScores(t *testing.T) {
	if authorityScores[SourceUserInput] != 1.0 ||
		authorityScores[SourceProjectDoc] != 0.9 ||
		authorityScores[SourceAPIResponse] != 0.7 ||
		authorityScores[SourceWebSearch] != 0.5 {
		t.Errorf("authority scores = %v", authorityScores)
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet("alpha beta gamma")
	b := wordSet("beta gamma delta")
	got := jaccard(a, b)
	if got != 0.5 {
		t.Errorf("jaccard = %v, want 0.5", got)
	}
	if jaccard(nil, nil) != 0 {
		t.Errorf("jaccard(nil,nil) should be 0")
	}
}
