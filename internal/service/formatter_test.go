package service

import (
	"strings"
	"testing"
)

func sampleContext() *SynthesizedContext {
	return &SynthesizedContext{
		Blocks: []SynthesizedBlock{
			{
				Content:  "register the endpoint on the router",
				Sources:  []Source{{SourceType: SourceProjectDoc, SourceID: "d1", Title: "routing.md", AuthorityScore: 0.9}},
				Section:  SectionCoreImplementation,
				Priority: 0.8,
				Contradictions: []Contradiction{{
					Claim:              "timeout: 30 seconds",
					Sources:            []string{"c1"},
					Alternative:        "timeout: 60 seconds",
					AlternativeSources: []string{"c2"},
				}},
			},
			{
				Content:  "benchmarks for argon2",
				Sources:  []Source{{SourceType: SourceWebSearch, SourceID: "https://x.test/a", Title: "Benchmarks", URL: "https://x.test/a", AuthorityScore: 0.5}},
				Section:  SectionRelatedResources,
				Priority: 0.4,
			},
		},
		Sections:           []string{SectionCoreImplementation, SectionRelatedResources},
		TotalTokenCount:    42,
		SourceCount:        2,
		ContradictionCount: 1,
	}
}

func TestFormatter_ChatGPTMarkdown(t *testing.T) {
	svc := NewFormatterService()

	out, err := svc.Format(sampleContext(), "chatgpt")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.HasPrefix(out, "## Project Context\n") {
		t.Errorf("missing top heading:\n%s", out)
	}
	if !strings.Contains(out, "_2 source(s) · 42 tokens_") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "### Core Implementation") {
		t.Errorf("missing section heading:\n%s", out)
	}
	if !strings.Contains(out, "_Sources: routing.md_") {
		t.Errorf("missing sources line:\n%s", out)
	}
	if !strings.Contains(out, "> **Note:**") {
		t.Errorf("missing contradiction note:\n%s", out)
	}
	if !strings.Contains(out, "_1 contradiction(s) detected across sources._") {
		t.Errorf("missing trailing contradiction count:\n%s", out)
	}
	if !strings.Contains(out, "[Benchmarks](https://x.test/a)") {
		t.Errorf("missing linked web source:\n%s", out)
	}
}

func TestFormatter_ClaudeXML(t *testing.T) {
	svc := NewFormatterService()

	out, err := svc.Format(sampleContext(), "claude")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}

	if !strings.HasPrefix(out, "<project_docs>") {
		t.Errorf("missing project_docs root:\n%s", out)
	}
	if !strings.Contains(out, `<section name="Core Implementation">`) {
		t.Errorf("missing section element:\n%s", out)
	}
	if !strings.Contains(out, "<source>routing.md</source>") {
		t.Errorf("missing source element:\n%s", out)
	}
	if !strings.Contains(out, "<relevance>high</relevance>") {
		t.Errorf("missing relevance bucket:\n%s", out)
	}
	if !strings.Contains(out, "<warning>") {
		t.Errorf("missing warning element:\n%s", out)
	}
	if !strings.Contains(out, "<web_research>") || !strings.Contains(out, "<url>https://x.test/a</url>") {
		t.Errorf("missing web research:\n%s", out)
	}
	if !strings.Contains(out, "<total_sources>2</total_sources>") ||
		!strings.Contains(out, "<total_tokens>42</total_tokens>") ||
		!strings.Contains(out, "<contradictions_detected>1</contradictions_detected>") {
		t.Errorf("missing task_analysis fields:\n%s", out)
	}
}

func TestFormatter_EmptyContext(t *testing.T) {
	svc := NewFormatterService()
	empty := &SynthesizedContext{}

	md, err := svc.Format(empty, "chatgpt")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(md, "_0 source(s) · 0 tokens_") {
		t.Errorf("empty markdown malformed:\n%s", md)
	}

	x, err := svc.Format(empty, "claude")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(x, "<project_docs>") || !strings.Contains(x, "</project_docs>") {
		t.Errorf("empty xml malformed:\n%s", x)
	}
	if strings.Contains(x, "<contradictions_detected>") {
		t.Error("zero contradictions must omit the element")
	}
}

func TestFormatter_UnknownPlatform(t *testing.T) {
	svc := NewFormatterService()
	if _, err := svc.Format(sampleContext(), "gemini"); err == nil {
		t.Error("expected error for unknown platform")
	}
}

func TestFormatter_XMLEscaping(t *testing.T) {
	svc := NewFormatterService()
	ctx := &SynthesizedContext{
		Blocks: []SynthesizedBlock{{
			Content: "compare a < b && c > d",
			Sources: []Source{{SourceType: SourceProjectDoc, SourceID: "d", Title: "notes & things"}},
			Section: SectionBackground,
		}},
		Sections: []string{SectionBackground},
	}

	out, err := svc.Format(ctx, "claude")
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if strings.Contains(out, "a < b") {
		t.Error("content not XML-escaped")
	}
	if !strings.Contains(out, "notes &amp; things") {
		t.Errorf("title not escaped:\n%s", out)
	}
}

func TestExtractSections(t *testing.T) {
	svc := NewFormatterService()

	sections := svc.ExtractSections(sampleContext())
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if sections[0].Name != SectionCoreImplementation || sections[0].SourceCount != 1 {
		t.Errorf("section[0] = %+v", sections[0])
	}
	if sections[0].TokenCount <= 0 {
		t.Error("section token count missing")
	}
	if sections[1].Name != SectionRelatedResources {
		t.Errorf("section[1] = %+v", sections[1])
	}
}
