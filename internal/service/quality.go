package service

import (
	"math"
	"strings"
	"time"
)

// QualitySubScores are the component scores, each in [0,1].
type QualitySubScores struct {
	Coverage    float64 `json:"coverage"`
	Diversity   float64 `json:"diversity"`
	Relevance   float64 `json:"relevance"`
	Compression float64 `json:"compression"`
}

// QualityScore rates an assembled context. Overall is 0-100; every boundary
// that persists or returns a quality value uses Overall/100 as a [0,1]
// float.
type QualityScore struct {
	Overall     int              `json:"overall"`
	SubScores   QualitySubScores `json:"subScores"`
	Suggestions []string         `json:"suggestions"`
	ScoredAt    time.Time        `json:"scoredAt"`
}

// Normalized returns the [0,1] representation used at persistence and HTTP
// boundaries.
func (q *QualityScore) Normalized() float64 {
	return float64(q.Overall) / 100
}

// QualityScorerService produces the quality rating for a tailor run.
type QualityScorerService struct{}

// NewQualityScorerService creates a QualityScorerService.
func NewQualityScorerService() *QualityScorerService {
	return &QualityScorerService{}
}

// Score rates the assembled context against the original task.
func (s *QualityScorerService) Score(taskInput string, synth *SynthesizedContext, included []CompressedChunk, stats CompressionStats) *QualityScore {
	sub := QualitySubScores{
		Coverage:    coverageScore(taskInput, synth),
		Diversity:   diversityScore(synth),
		Relevance:   relevanceScore(included),
		Compression: compressionScore(stats),
	}

	overall := int(math.Round(100 * (0.3*sub.Coverage + 0.2*sub.Diversity + 0.35*sub.Relevance + 0.15*sub.Compression)))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	return &QualityScore{
		Overall:     overall,
		SubScores:   sub,
		Suggestions: suggestions(sub),
		ScoredAt:    time.Now().UTC(),
	}
}

// coverageScore is the fraction of significant task keywords present in the
// assembled content. A task with no significant keywords scores 1.
func coverageScore(taskInput string, synth *SynthesizedContext) float64 {
	keywords := significantKeywords(taskInput)
	if len(keywords) == 0 {
		return 1
	}

	var all strings.Builder
	for _, b := range synth.Blocks {
		all.WriteString(strings.ToLower(b.Content))
		all.WriteByte('\n')
	}
	content := all.String()

	hits := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func significantKeywords(taskInput string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(taskInput)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}`")
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// diversityScore rewards multiple distinct documents and mixed source types.
func diversityScore(synth *SynthesizedContext) float64 {
	docs := map[string]bool{}
	hasDoc, hasWeb := false, false
	for _, b := range synth.Blocks {
		for _, src := range b.Sources {
			switch src.SourceType {
			case SourceProjectDoc:
				hasDoc = true
				docs[src.SourceID] = true
			case SourceWebSearch:
				hasWeb = true
			}
		}
	}
	if len(docs) == 0 && !hasWeb {
		return 0
	}

	score := 0.2 * math.Min(float64(len(docs)), 3)
	if score > 0.8 {
		score = 0.8
	}
	if hasDoc && hasWeb {
		score += 0.2
	}
	// Every component is a multiple of 0.2; rounding to tenths removes
	// float error such as 0.4+0.2 = 0.6000000000000001.
	return math.Min(math.Round(score*10)/10, 1)
}

// relevanceScore is the mean finalScore of included chunks, penalized when
// any included chunk scored below 0.3.
func relevanceScore(included []CompressedChunk) float64 {
	if len(included) == 0 {
		return 0
	}
	sum := 0.0
	lowFound := false
	for _, c := range included {
		sum += c.RelevanceScore
		if c.RelevanceScore < 0.3 {
			lowFound = true
		}
	}
	score := sum / float64(len(included))
	if lowFound {
		score -= 0.1
	}
	return clamp01(score)
}

// compressionScore peaks at 1 when the compressed/raw ratio is in
// [0.2, 0.5] and decays linearly outside; 0.5 when there was nothing to
// compress.
func compressionScore(stats CompressionStats) float64 {
	if stats.OriginalTokens == 0 {
		return 0.5
	}
	ratio := float64(stats.CompressedTokens) / float64(stats.OriginalTokens)
	switch {
	case ratio >= 0.2 && ratio <= 0.5:
		return 1
	case ratio < 0.2:
		return clamp01(ratio / 0.2)
	default:
		return clamp01(1 - (ratio-0.5)/0.5)
	}
}

func suggestions(sub QualitySubScores) []string {
	var out []string
	if sub.Coverage < 0.5 {
		out = append(out, "coverage is low: upload more relevant documentation")
	}
	if sub.Diversity < 0.4 {
		out = append(out, "context relies on a single source — consider adding web search or uploading additional documents")
	}
	if sub.Relevance < 0.5 {
		out = append(out, "retrieved content is weakly related: refine task wording")
	}
	if sub.Compression < 0.5 {
		out = append(out, "compression is outside the effective band: adjust token budget")
	}
	return out
}
