package service

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// FormattedSection is the per-section breakdown returned alongside the
// rendered text, independent of the platform rendering.
type FormattedSection struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	TokenCount  int    `json:"tokenCount"`
	SourceCount int    `json:"sourceCount"`
}

// FormatterService renders a synthesized context for a target platform:
// Markdown for ChatGPT, XML for Claude.
type FormatterService struct{}

// NewFormatterService creates a FormatterService.
func NewFormatterService() *FormatterService {
	return &FormatterService{}
}

// Format renders ctx for the given platform ("chatgpt" or "claude").
func (s *FormatterService) Format(ctx *SynthesizedContext, platform string) (string, error) {
	switch platform {
	case "chatgpt":
		return s.formatMarkdown(ctx), nil
	case "claude":
		return s.formatXML(ctx), nil
	default:
		return "", fmt.Errorf("service.Format: unknown platform %q", platform)
	}
}

// ExtractSections returns the per-section stats for the response payload.
func (s *FormatterService) ExtractSections(ctx *SynthesizedContext) []FormattedSection {
	var out []FormattedSection
	for _, name := range ctx.Sections {
		var contents []string
		sources := map[string]bool{}
		for _, b := range ctx.Blocks {
			if b.Section != name {
				continue
			}
			contents = append(contents, b.Content)
			for _, src := range b.Sources {
				sources[string(src.SourceType)+":"+src.SourceID] = true
			}
		}
		content := strings.Join(contents, "\n\n")
		out = append(out, FormattedSection{
			Name:        name,
			Content:     content,
			TokenCount:  estimateTokens(content),
			SourceCount: len(sources),
		})
	}
	return out
}

func (s *FormatterService) formatMarkdown(ctx *SynthesizedContext) string {
	var b strings.Builder

	b.WriteString("## Project Context\n")
	fmt.Fprintf(&b, "_%d source(s) · %d tokens_\n", ctx.SourceCount, ctx.TotalTokenCount)

	for _, section := range ctx.Sections {
		fmt.Fprintf(&b, "\n### %s\n", section)
		for _, block := range ctx.Blocks {
			if block.Section != section {
				continue
			}
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(block.Content))
			b.WriteString("\n")
			fmt.Fprintf(&b, "_Sources: %s_\n", sourceLine(block.Sources))
			for _, c := range block.Contradictions {
				fmt.Fprintf(&b, "> **Note:** conflicting information found: %q vs %q\n", c.Claim, c.Alternative)
			}
		}
	}

	if ctx.ContradictionCount > 0 {
		fmt.Fprintf(&b, "\n_%d contradiction(s) detected across sources._\n", ctx.ContradictionCount)
	}
	return b.String()
}

func sourceLine(sources []Source) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			parts = append(parts, fmt.Sprintf("[%s](%s)", s.Title, s.URL))
		} else {
			parts = append(parts, s.Title)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *FormatterService) formatXML(ctx *SynthesizedContext) string {
	var b strings.Builder

	b.WriteString("<project_docs>\n")
	for _, section := range ctx.Sections {
		if section == SectionRelatedResources {
			continue
		}
		fmt.Fprintf(&b, "  <section name=%q>\n", section)
		for _, block := range ctx.Blocks {
			if block.Section != section {
				continue
			}
			b.WriteString("    <document>\n")
			for _, src := range block.Sources {
				fmt.Fprintf(&b, "      <source>%s</source>\n", xmlEscape(src.Title))
				if src.URL != "" {
					fmt.Fprintf(&b, "      <url>%s</url>\n", xmlEscape(src.URL))
				}
			}
			fmt.Fprintf(&b, "      <relevance>%s</relevance>\n", relevanceBucket(block.Priority))
			fmt.Fprintf(&b, "      <content>%s</content>\n", xmlEscape(block.Content))
			for _, c := range block.Contradictions {
				fmt.Fprintf(&b, "      <warning>conflicting information: %s vs %s</warning>\n", xmlEscape(c.Claim), xmlEscape(c.Alternative))
			}
			b.WriteString("    </document>\n")
		}
		b.WriteString("  </section>\n")
	}
	b.WriteString("</project_docs>\n")

	var web []SynthesizedBlock
	for _, block := range ctx.Blocks {
		if block.Section == SectionRelatedResources {
			web = append(web, block)
		}
	}
	if len(web) > 0 {
		b.WriteString("<web_research>\n")
		for _, block := range web {
			b.WriteString("  <result>\n")
			for _, src := range block.Sources {
				fmt.Fprintf(&b, "    <title>%s</title>\n", xmlEscape(src.Title))
				if src.URL != "" {
					fmt.Fprintf(&b, "    <url>%s</url>\n", xmlEscape(src.URL))
				}
			}
			fmt.Fprintf(&b, "    <content>%s</content>\n", xmlEscape(block.Content))
			b.WriteString("  </result>\n")
		}
		b.WriteString("</web_research>\n")
	}

	b.WriteString("<task_analysis>\n")
	fmt.Fprintf(&b, "  <total_sources>%d</total_sources>\n", ctx.SourceCount)
	fmt.Fprintf(&b, "  <total_tokens>%d</total_tokens>\n", ctx.TotalTokenCount)
	fmt.Fprintf(&b, "  <sections>%s</sections>\n", xmlEscape(strings.Join(ctx.Sections, ", ")))
	if ctx.ContradictionCount > 0 {
		fmt.Fprintf(&b, "  <contradictions_detected>%d</contradictions_detected>\n", ctx.ContradictionCount)
	}
	b.WriteString("</task_analysis>\n")

	return b.String()
}

// relevanceBucket maps a block priority to a coarse label.
func relevanceBucket(priority float64) string {
	switch {
	case priority >= 0.7:
		return "high"
	case priority >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
