package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

type SourceType string

const (
	SourceProjectDoc  SourceType = "PROJECT_DOC"
	SourceWebSearch   SourceType = "WEB_SEARCH"
	SourceAPIResponse SourceType = "API_RESPONSE"
	SourceUserInput   SourceType = "USER_INPUT"
)

// authorityScores fixes per-source-type authority.
var authorityScores = map[SourceType]float64{
	SourceUserInput:   1.0,
	SourceProjectDoc:  0.9,
	SourceAPIResponse: 0.7,
	SourceWebSearch:   0.5,
}

// Source attributes a synthesized block to its origin.
type Source struct {
	SourceType     SourceType `json:"sourceType"`
	SourceID       string     `json:"sourceId"`
	Title          string     `json:"title"`
	URL            string     `json:"url,omitempty"`
	AuthorityScore float64    `json:"authorityScore"`
}

// Contradiction records two conflicting claims about the same entity.
type Contradiction struct {
	Claim              string   `json:"claim"`
	Sources            []string `json:"sources"`
	Alternative        string   `json:"alternative"`
	AlternativeSources []string `json:"alternativeSources"`
}

// Section names, in output order.
const (
	SectionCoreImplementation = "Core Implementation"
	SectionExamples           = "Examples"
	SectionBackground         = "Background Context"
	SectionRelatedResources   = "Related Resources"
)

// SectionOrder is the fixed ordering of populated sections in output.
var SectionOrder = []string{SectionCoreImplementation, SectionExamples, SectionBackground, SectionRelatedResources}

// SynthesizedBlock is one unit of output text with attribution.
type SynthesizedBlock struct {
	Content        string          `json:"content"`
	Sources        []Source        `json:"sources"`
	Section        string          `json:"section"`
	Priority       float64         `json:"priority"`
	Contradictions []Contradiction `json:"contradictions,omitempty"`
}

// SynthesizedContext is the assembled output of the synthesis stage.
type SynthesizedContext struct {
	Blocks             []SynthesizedBlock `json:"blocks"`
	Sections           []string           `json:"sections"`
	TotalTokenCount    int                `json:"totalTokenCount"`
	SourceCount        int                `json:"sourceCount"`
	ContradictionCount int                `json:"contradictionCount"`
}

// WebResult is a normalized web search hit consumed by synthesis.
type WebResult struct {
	Title       string
	URL         string
	Snippet     string
	Content     string
	Score       float64
	PublishedAt *time.Time
	Provider    string
}

const jaccardDedupThreshold = 0.6

// priorityWeights are {relevance, recency, authority, specificity}.
type priorityWeights struct {
	relevance   float64
	recency     float64
	authority   float64
	specificity float64
}

var defaultPriorityWeights = priorityWeights{0.4, 0.2, 0.2, 0.2}

// taskPriorityOverrides adjusts ranking emphasis per task type.
var taskPriorityOverrides = map[TaskType]priorityWeights{
	TaskCoding:   {0.35, 0.15, 0.15, 0.35},
	TaskResearch: {0.30, 0.35, 0.20, 0.15},
}

var (
	numericClaimPattern = regexp.MustCompile(`(?i)\b([a-z][a-z0-9_.-]{2,})\s*[=:]\s*(\d+(?:\.\d+)?\s*[a-z%]*)`)
	booleanClaimPattern = regexp.MustCompile(`(?i)\b(enable[sd]?|disable[sd]?|supports?|does not support|deprecated)\s+([a-z][a-z0-9 _.-]{2,40})`)
	stepPattern         = regexp.MustCompile("(?m)^\\s*(?:\\d+[.)]|[-*])\\s+.*`[^`]+`")
	imperativePattern   = regexp.MustCompile(`(?i)\b(use|run|call|add|set|create|configure|install|define|implement|register|apply)\b`)
	inlineCodePattern   = regexp.MustCompile("`[^`]+`")
)

// SynthesizerService deduplicates compressed chunks, detects
// contradictions, groups blocks into sections, ranks them, and merges web
// results.
type SynthesizerService struct{}

// NewSynthesizerService creates a SynthesizerService.
func NewSynthesizerService() *SynthesizerService {
	return &SynthesizerService{}
}

// docTitles maps documentId → filename, used for source attribution.
type DocTitles map[string]string

// Synthesize assembles the final context from compressed chunks and web
// results.
func (s *SynthesizerService) Synthesize(chunks []CompressedChunk, webResults []WebResult, analysis *TaskAnalysis, titles DocTitles) *SynthesizedContext {
	deduped := dedupChunks(chunks)
	contradictions := detectContradictions(deduped)

	weights := defaultPriorityWeights
	if analysis != nil {
		if w, ok := taskPriorityOverrides[analysis.TaskType]; ok {
			weights = w
		}
	}

	primaryDomain := DomainGeneral
	if analysis != nil && len(analysis.Domains) > 0 {
		primaryDomain = analysis.Domains[0]
	}

	var blocks []SynthesizedBlock
	for _, c := range deduped {
		section := classifySection(c, primaryDomain)
		src := Source{
			SourceType:     SourceProjectDoc,
			SourceID:       c.DocumentID,
			Title:          titles.title(c.DocumentID),
			AuthorityScore: authorityScores[SourceProjectDoc],
		}
		block := SynthesizedBlock{
			Content:        c.Content,
			Sources:        []Source{src},
			Section:        section,
			Contradictions: contradictionsFor(contradictions, c.OriginalChunkID),
		}
		block.Priority = blockPriority(weights, c.RelevanceScore, 0.5, src.AuthorityScore, specificity(c.Content))
		blocks = append(blocks, block)
	}

	blocks = append(blocks, mergeWebResults(blocks, webResults, weights)...)

	sortBlocks(blocks)

	ctx := &SynthesizedContext{
		Blocks:             blocks,
		Sections:           populatedSections(blocks),
		ContradictionCount: len(contradictions),
		SourceCount:        uniqueSourceCount(blocks),
	}
	for _, b := range blocks {
		ctx.TotalTokenCount += estimateTokens(b.Content)
	}
	return ctx
}

// dedupChunks removes near-duplicates by word-set Jaccard similarity,
// keeping the higher relevanceScore. Idempotent: any two retained chunks
// have similarity <= the threshold.
func dedupChunks(chunks []CompressedChunk) []CompressedChunk {
	ordered := make([]CompressedChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].RelevanceScore != ordered[j].RelevanceScore {
			return ordered[i].RelevanceScore > ordered[j].RelevanceScore
		}
		return ordered[i].OriginalChunkID < ordered[j].OriginalChunkID
	})

	var kept []CompressedChunk
	var keptSets []map[string]bool
	for _, c := range ordered {
		set := wordSet(c.Content)
		dup := false
		for _, ks := range keptSets {
			if jaccard(set, ks) > jaccardDedupThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
			keptSets = append(keptSets, set)
		}
	}
	return kept
}

type claim struct {
	entity  string
	value   string
	text    string
	chunkID string
}

// detectContradictions extracts value claims and flags entities with two or
// more distinct values supported by distinct chunks.
func detectContradictions(chunks []CompressedChunk) []Contradiction {
	var claims []claim
	for _, c := range chunks {
		for _, m := range numericClaimPattern.FindAllStringSubmatch(c.Content, -1) {
			claims = append(claims, claim{
				entity:  strings.ToLower(m[1]),
				value:   strings.ToLower(strings.TrimSpace(m[2])),
				text:    strings.TrimSpace(m[0]),
				chunkID: c.OriginalChunkID,
			})
		}
		for _, m := range booleanClaimPattern.FindAllStringSubmatch(c.Content, -1) {
			claims = append(claims, claim{
				entity:  strings.ToLower(strings.TrimSpace(m[2])),
				value:   strings.ToLower(strings.TrimSpace(m[1])),
				text:    strings.TrimSpace(m[0]),
				chunkID: c.OriginalChunkID,
			})
		}
	}

	byEntity := map[string][]claim{}
	var entities []string
	for _, cl := range claims {
		if _, ok := byEntity[cl.entity]; !ok {
			entities = append(entities, cl.entity)
		}
		byEntity[cl.entity] = append(byEntity[cl.entity], cl)
	}
	sort.Strings(entities)

	var out []Contradiction
	for _, entity := range entities {
		group := byEntity[entity]
		byValue := map[string][]claim{}
		var values []string
		for _, cl := range group {
			if _, ok := byValue[cl.value]; !ok {
				values = append(values, cl.value)
			}
			byValue[cl.value] = append(byValue[cl.value], cl)
		}
		if len(values) < 2 {
			continue
		}
		sort.Strings(values)

		first, second := byValue[values[0]], byValue[values[1]]
		if sameChunks(first, second) {
			continue
		}
		out = append(out, Contradiction{
			Claim:              first[0].text,
			Sources:            chunkIDs(first),
			Alternative:        second[0].text,
			AlternativeSources: chunkIDs(second),
		})
	}
	return out
}

func sameChunks(a, b []claim) bool {
	set := map[string]bool{}
	for _, cl := range a {
		set[cl.chunkID] = true
	}
	for _, cl := range b {
		if !set[cl.chunkID] {
			return false
		}
	}
	for _, cl := range b {
		delete(set, cl.chunkID)
	}
	return len(set) == 0
}

func chunkIDs(claims []claim) []string {
	seen := map[string]bool{}
	var out []string
	for _, cl := range claims {
		if !seen[cl.chunkID] {
			seen[cl.chunkID] = true
			out = append(out, cl.chunkID)
		}
	}
	return out
}

func contradictionsFor(contradictions []Contradiction, chunkID string) []Contradiction {
	var out []Contradiction
	for _, c := range contradictions {
		for _, id := range c.Sources {
			if id == chunkID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// classifySection assigns a chunk to an output section.
func classifySection(c CompressedChunk, primaryDomain KnowledgeDomain) string {
	if strings.Contains(c.Content, "```") || stepPattern.MatchString(c.Content) {
		return SectionExamples
	}
	if c.RelevanceScore >= 0.7 {
		if imperativePattern.MatchString(c.Content) || domainMatch(primaryDomain, c.Content) {
			return SectionCoreImplementation
		}
	}
	return SectionBackground
}

func domainMatch(domain KnowledgeDomain, content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range domainLexicon[domain] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// mergeWebResults emits non-duplicate web results as Related Resources
// blocks.
func mergeWebResults(existing []SynthesizedBlock, results []WebResult, weights priorityWeights) []SynthesizedBlock {
	var existingSets []map[string]bool
	for _, b := range existing {
		existingSets = append(existingSets, wordSet(b.Content))
	}

	var out []SynthesizedBlock
	for _, r := range results {
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		set := wordSet(content)
		dup := false
		for _, es := range existingSets {
			if jaccard(set, es) > jaccardDedupThreshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		existingSets = append(existingSets, set)

		src := Source{
			SourceType:     SourceWebSearch,
			SourceID:       r.URL,
			Title:          r.Title,
			URL:            r.URL,
			AuthorityScore: authorityScores[SourceWebSearch],
		}
		block := SynthesizedBlock{
			Content: content,
			Sources: []Source{src},
			Section: SectionRelatedResources,
		}
		block.Priority = blockPriority(weights, clamp01(r.Score), recencyScore(r.PublishedAt), src.AuthorityScore, specificity(content))
		out = append(out, block)
	}
	return out
}

func blockPriority(w priorityWeights, relevance, recency, authority, specificity float64) float64 {
	return w.relevance*relevance + w.recency*recency + w.authority*authority + w.specificity*specificity
}

// recencyScore maps an optional publication date to [0,1]; unknown dates
// score neutral 0.5.
func recencyScore(published *time.Time) float64 {
	if published == nil {
		return 0.5
	}
	days := time.Since(*published).Hours() / 24
	if days < 0 {
		days = 0
	}
	if days <= 30 {
		return 1.0
	}
	if days >= 730 {
		return 0.0
	}
	return 1.0 - (days-30)/700
}

// specificity measures the density of concrete tokens: numbers, code-like
// identifiers, and inline code.
func specificity(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	concrete := 0
	for _, w := range words {
		if strings.ContainsAny(w, "0123456789") || strings.ContainsAny(w, "_()=.{}/") {
			concrete++
		}
	}
	concrete += 2 * len(inlineCodePattern.FindAllString(content, -1))
	score := float64(concrete) / float64(len(words))
	return clamp01(score * 2)
}

// sortBlocks orders blocks by section order, then priority desc, with a
// deterministic content tie-break.
func sortBlocks(blocks []SynthesizedBlock) {
	rank := map[string]int{}
	for i, s := range SectionOrder {
		rank[s] = i
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if rank[blocks[i].Section] != rank[blocks[j].Section] {
			return rank[blocks[i].Section] < rank[blocks[j].Section]
		}
		if blocks[i].Priority != blocks[j].Priority {
			return blocks[i].Priority > blocks[j].Priority
		}
		return blocks[i].Content < blocks[j].Content
	})
}

func populatedSections(blocks []SynthesizedBlock) []string {
	present := map[string]bool{}
	for _, b := range blocks {
		present[b.Section] = true
	}
	var out []string
	for _, s := range SectionOrder {
		if present[s] {
			out = append(out, s)
		}
	}
	return out
}

func uniqueSourceCount(blocks []SynthesizedBlock) int {
	seen := map[string]bool{}
	for _, b := range blocks {
		for _, s := range b.Sources {
			seen[fmt.Sprintf("%s:%s", s.SourceType, s.SourceID)] = true
		}
	}
	return len(seen)
}

func (t DocTitles) title(docID string) string {
	if t == nil {
		return docID
	}
	if name, ok := t[docID]; ok && name != "" {
		return name
	}
	return docID
}

// wordSet returns the lowercase word set of text.
func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}`")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
