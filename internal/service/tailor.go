package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/tailor-backend/internal/model"
)

// TailorOptions are the per-request options of a tailor call.
type TailorOptions struct {
	IncludeWebSearch *bool `json:"includeWebSearch,omitempty"`
	MaxTokens        *int  `json:"maxTokens,omitempty"`
}

// TailorRequest is the input of the full and preview pipelines.
type TailorRequest struct {
	ProjectID      string        `json:"projectId"`
	TaskInput      string        `json:"taskInput"`
	TargetPlatform string        `json:"targetPlatform"`
	Options        TailorOptions `json:"options"`
}

// TailorMetadata is the pipeline metadata returned with each response and
// persisted in the session.
type TailorMetadata struct {
	TotalTokens      int               `json:"totalTokens"`
	TokensUsed       int               `json:"tokensUsed"`
	ChunksRetrieved  int               `json:"chunksRetrieved"`
	ChunksIncluded   int               `json:"chunksIncluded"`
	GapReport        *GapReport        `json:"gapReport"`
	CompressionStats CompressionStats  `json:"compressionStats"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
	QualityScore     float64           `json:"qualityScore"`
	QualityDetail    *QualityScore     `json:"qualityDetail,omitempty"`
	Degraded         bool              `json:"degraded"`
	Persisted        bool              `json:"persisted"`
	WebSearchUsed    bool              `json:"webSearchUsed"`
}

// TailorResponse is the output of the full pipeline.
type TailorResponse struct {
	SessionID string             `json:"sessionId"`
	Context   string             `json:"context"`
	Sections  []FormattedSection `json:"sections"`
	Metadata  TailorMetadata     `json:"metadata"`
}

// TailorPreviewResponse is the output of the fast preview pipeline.
type TailorPreviewResponse struct {
	EstimatedTokens  int        `json:"estimatedTokens"`
	EstimatedChunks  int        `json:"estimatedChunks"`
	GapSummary       *GapReport `json:"gapSummary"`
	EstimatedQuality float64    `json:"estimatedQuality"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
}

// WebSearchClient abstracts the web search subsystem for the orchestrator.
type WebSearchClient interface {
	Available() bool
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}

// SessionStore persists tailor sessions (append-only).
type SessionStore interface {
	Create(ctx context.Context, s *model.TailorSession) error
}

// TitleLister resolves document filenames for source attribution.
type TitleLister interface {
	ListByProject(ctx context.Context, projectID string) ([]model.Document, error)
}

// TailorService drives the full tailoring pipeline and the fast preview
// pipeline. Every stage after project verification degrades instead of
// aborting; only an unknown or foreign project is fatal.
type TailorService struct {
	projects    ProjectRepository
	docs        TitleLister
	sessions    SessionStore
	analyzer    *AnalyzerService
	scorer      *ScorerService
	gaps        *GapDetectorService
	window      *WindowService
	compressor  *CompressorService
	synthesizer *SynthesizerService
	formatter   *FormatterService
	quality     *QualityScorerService
	web         WebSearchClient // nil = web search unavailable

	fanoutLimit    int
	maxWebQueries  int
	webMaxResults  int
}

// NewTailorService creates a TailorService. web may be nil.
func NewTailorService(
	projects ProjectRepository,
	docs TitleLister,
	sessions SessionStore,
	analyzer *AnalyzerService,
	scorer *ScorerService,
	gaps *GapDetectorService,
	window *WindowService,
	compressor *CompressorService,
	synthesizer *SynthesizerService,
	formatter *FormatterService,
	quality *QualityScorerService,
	web WebSearchClient,
	fanoutLimit, maxWebQueries int,
) *TailorService {
	if fanoutLimit <= 0 {
		fanoutLimit = 8
	}
	if maxWebQueries <= 0 {
		maxWebQueries = 3
	}
	return &TailorService{
		projects:      projects,
		docs:          docs,
		sessions:      sessions,
		analyzer:      analyzer,
		scorer:        scorer,
		gaps:          gaps,
		window:        window,
		compressor:    compressor,
		synthesizer:   synthesizer,
		formatter:     formatter,
		quality:       quality,
		web:           web,
		fanoutLimit:   fanoutLimit,
		maxWebQueries: maxWebQueries,
		webMaxResults: 5,
	}
}

// Tailor runs the full pipeline and persists a session.
func (s *TailorService) Tailor(ctx context.Context, userID string, req TailorRequest) (*TailorResponse, error) {
	start := time.Now()

	platform, err := normalizePlatform(req.TargetPlatform)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TaskInput) == "" {
		return nil, ErrEmptyInput
	}

	// Stage 1: ownership check. The only fatal stage.
	if err := s.verifyOwner(ctx, userID, req.ProjectID); err != nil {
		return nil, err
	}

	degraded := false

	// Stage 2: task analysis, falling back to the minimal analysis.
	analysis, err := s.analyzer.Analyze(ctx, req.TaskInput)
	if err != nil {
		slog.Warn("task analysis failed, using fallback", "error", err)
		analysis = FallbackAnalysis(req.TaskInput)
		degraded = true
	}

	// Stage 3: budget.
	budget, err := s.window.CreateBudget(platform, "")
	if err != nil {
		return nil, err
	}
	projectDocsBudget := budget.Allocations[SectionProjectDocs]
	if req.Options.MaxTokens != nil && *req.Options.MaxTokens >= 0 {
		projectDocsBudget = *req.Options.MaxTokens
	}

	// Stage 4: score chunks for every suggested query in parallel, merge by
	// max finalScore per chunk.
	merged, scoreDegraded := s.scoreQueries(ctx, req.ProjectID, analysis)
	degraded = degraded || scoreDegraded

	// Stage 5: gap detection.
	gapReport := s.gaps.Detect(analysis, merged)

	// Stage 6: optional web search.
	var webResults []WebResult
	webUsed := false
	if s.shouldSearchWeb(gapReport, req.Options) {
		webResults = s.searchWeb(ctx, gapReport, analysis)
		webUsed = len(webResults) > 0
	}

	// Stage 7: compression. Non-fatal: fall back to uncompressed fitting.
	compressed, err := s.compressor.Compress(ctx, merged, projectDocsBudget)
	if err != nil {
		slog.Warn("compression failed, using uncompressed fallback", "error", err)
		compressed = uncompressedFallback(merged, projectDocsBudget)
		degraded = true
	}

	// Stage 8: synthesis.
	synth := s.synthesizer.Synthesize(compressed.Chunks, webResults, analysis, s.docTitles(ctx, req.ProjectID))

	// Stage 9: formatting.
	rendered, err := s.formatter.Format(synth, platform)
	if err != nil {
		return nil, err
	}
	sections := s.formatter.ExtractSections(synth)

	// Stage 10: quality.
	quality := s.quality.Score(req.TaskInput, synth, compressed.Chunks, compressed.Stats)

	// Budget accounting.
	budget, _ = TrackUsage(budget, SectionProjectDocs, compressed.TotalTokenCount)
	webTokens := 0
	for _, b := range synth.Blocks {
		if b.Section == SectionRelatedResources {
			webTokens += estimateTokens(b.Content)
		}
	}
	budget, _ = TrackUsage(budget, SectionWebSearch, webTokens)

	meta := TailorMetadata{
		TotalTokens:      budget.TotalAvailable,
		TokensUsed:       budget.TotalAvailable - budget.Remaining,
		ChunksRetrieved:  len(merged),
		ChunksIncluded:   len(compressed.Chunks),
		GapReport:        gapReport,
		CompressionStats: compressed.Stats,
		QualityScore:     quality.Normalized(),
		QualityDetail:    quality,
		Degraded:         degraded,
		WebSearchUsed:    webUsed,
	}
	meta.ProcessingTimeMs = time.Since(start).Milliseconds()

	// Stage 11: persist session. Non-fatal: a synthetic local id is
	// returned when the write fails; an incomplete session is never
	// written.
	sessionID, persisted := s.persistSession(ctx, userID, req, platform, rendered, synth.TotalTokenCount, synth.Sections, quality, &meta)
	meta.Persisted = persisted

	return &TailorResponse{
		SessionID: sessionID,
		Context:   rendered,
		Sections:  sections,
		Metadata:  meta,
	}, nil
}

// Preview runs the fast path: analysis, scoring for the first query only,
// gap detection, and a counter-only compression estimate. No session is
// written. The compression estimate makes no LLM call; task analysis and
// scoring still use the analyzer's LLM and the reranker when configured.
func (s *TailorService) Preview(ctx context.Context, userID string, req TailorRequest) (*TailorPreviewResponse, error) {
	start := time.Now()

	platform, err := normalizePlatform(req.TargetPlatform)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TaskInput) == "" {
		return nil, ErrEmptyInput
	}
	if err := s.verifyOwner(ctx, userID, req.ProjectID); err != nil {
		return nil, err
	}

	analysis, err := s.analyzer.Analyze(ctx, req.TaskInput)
	if err != nil {
		analysis = FallbackAnalysis(req.TaskInput)
	}

	budget, err := s.window.CreateBudget(platform, "")
	if err != nil {
		return nil, err
	}
	projectDocsBudget := budget.Allocations[SectionProjectDocs]
	if req.Options.MaxTokens != nil && *req.Options.MaxTokens >= 0 {
		projectDocsBudget = *req.Options.MaxTokens
	}

	result, err := s.scorer.Score(ctx, req.ProjectID, analysis.SuggestedSearchQueries[0], analysis.KeyEntities)
	if err != nil {
		return nil, fmt.Errorf("service.Preview: score: %w", err)
	}

	gapReport := s.gaps.Detect(analysis, result.Chunks)
	estimate := s.compressor.EstimateCompressedSize(result.Chunks, projectDocsBudget)

	return &TailorPreviewResponse{
		EstimatedTokens:  estimate.TotalTokenCount,
		EstimatedChunks:  len(estimate.Chunks),
		GapSummary:       gapReport,
		EstimatedQuality: s.estimateQuality(req.TaskInput, result.Chunks, estimate),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *TailorService) verifyOwner(ctx context.Context, userID, projectID string) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.UserID != userID {
		return ErrForbidden
	}
	return nil
}

// scoreQueries fans scoring across all suggested queries, bounded by the
// per-request fan-out cap, and merges deterministically.
func (s *TailorService) scoreQueries(ctx context.Context, projectID string, analysis *TaskAnalysis) ([]ScoredChunk, bool) {
	queries := analysis.SuggestedSearchQueries
	rounds := make([][]ScoredChunk, len(queries))
	degraded := make([]bool, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanoutLimit)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			result, err := s.scorer.Score(gCtx, projectID, q, analysis.KeyEntities)
			if err != nil {
				slog.Warn("query scoring failed", "query", q, "error", err)
				degraded[i] = true
				return nil // stage isolation: one bad query degrades, not aborts
			}
			rounds[i] = result.Chunks
			degraded[i] = result.Degraded
			return nil
		})
	}
	_ = g.Wait()

	anyDegraded := false
	for _, d := range degraded {
		anyDegraded = anyDegraded || d
	}
	return MergeScored(rounds...), anyDegraded
}

func (s *TailorService) shouldSearchWeb(report *GapReport, opts TailorOptions) bool {
	if opts.IncludeWebSearch != nil && !*opts.IncludeWebSearch {
		return false
	}
	if s.web == nil || !s.web.Available() {
		return false
	}
	return s.gaps.ShouldTriggerWebSearch(report)
}

// searchWeb issues up to maxWebQueries gap-suggested queries. Failures are
// non-fatal.
func (s *TailorService) searchWeb(ctx context.Context, report *GapReport, analysis *TaskAnalysis) []WebResult {
	queries := report.SearchQueries(s.maxWebQueries)
	if len(queries) == 0 {
		queries = analysis.SuggestedSearchQueries
		if len(queries) > s.maxWebQueries {
			queries = queries[:s.maxWebQueries]
		}
	}

	var results []WebResult
	seen := map[string]bool{}
	for _, q := range queries {
		hits, err := s.web.Search(ctx, q, s.webMaxResults)
		if err != nil {
			slog.Warn("web search failed", "query", q, "error", err)
			continue
		}
		for _, h := range hits {
			if h.URL == "" || seen[h.URL] {
				continue
			}
			seen[h.URL] = true
			results = append(results, h)
		}
	}
	return results
}

func (s *TailorService) docTitles(ctx context.Context, projectID string) DocTitles {
	docs, err := s.docs.ListByProject(ctx, projectID)
	if err != nil {
		slog.Warn("failed to list documents for titles", "project_id", projectID, "error", err)
		return nil
	}
	titles := make(DocTitles, len(docs))
	for _, d := range docs {
		titles[d.ID] = d.Filename
	}
	return titles
}

// uncompressedFallback includes chunks verbatim in score order until the
// budget is exhausted.
func uncompressedFallback(scored []ScoredChunk, budget int) *CompressionResult {
	result := &CompressionResult{}
	remaining := budget
	for _, sc := range scored {
		tokens := sc.TokenCount
		if tokens == 0 {
			tokens = estimateTokens(sc.Content)
		}
		result.Stats.OriginalTokens += tokens
		if tokens > remaining {
			result.Stats.DroppedCount++
			continue
		}
		result.Chunks = append(result.Chunks, CompressedChunk{
			OriginalChunkID:      sc.ChunkID,
			DocumentID:           sc.DocumentID,
			CompressionLevel:     LevelFull,
			Content:              sc.Content,
			OriginalTokenCount:   tokens,
			CompressedTokenCount: tokens,
			RelevanceScore:       sc.FinalScore,
		})
		remaining -= tokens
		result.Stats.FullCount++
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

// estimateQuality mirrors the quality formula using only preview-safe
// inputs: scored chunk contents stand in for the assembled context.
func (s *TailorService) estimateQuality(taskInput string, scored []ScoredChunk, estimate *CompressionResult) float64 {
	keywords := significantKeywords(taskInput)
	coverage := 1.0
	if len(keywords) > 0 {
		var all strings.Builder
		for _, c := range scored {
			all.WriteString(strings.ToLower(c.Content))
			all.WriteByte('\n')
		}
		content := all.String()
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				hits++
			}
		}
		coverage = float64(hits) / float64(len(keywords))
	}

	docs := map[string]bool{}
	included := map[string]bool{}
	for _, c := range estimate.Chunks {
		included[c.OriginalChunkID] = true
	}
	sumScore, n, lowFound := 0.0, 0, false
	for _, c := range scored {
		if !included[c.ChunkID] {
			continue
		}
		docs[c.DocumentID] = true
		sumScore += c.FinalScore
		n++
		if c.FinalScore < 0.3 {
			lowFound = true
		}
	}

	diversity := 0.2 * math.Min(float64(len(docs)), 3)
	if diversity > 0.8 {
		diversity = 0.8
	}

	relevance := 0.0
	if n > 0 {
		relevance = sumScore / float64(n)
		if lowFound {
			relevance -= 0.1
		}
		relevance = clamp01(relevance)
	}

	return clamp01(0.3*coverage + 0.2*diversity + 0.35*relevance + 0.15*compressionScore(estimate.Stats))
}

// persistSession writes the session row. On failure a synthetic local id is
// returned and the response still succeeds.
func (s *TailorService) persistSession(ctx context.Context, userID string, req TailorRequest, platform, rendered string, tokenCount int, sections []string, quality *QualityScore, meta *TailorMetadata) (string, bool) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		slog.Error("failed to encode session metadata", "error", err)
		metaJSON = []byte("{}")
	}

	session := &model.TailorSession{
		UserID:           userID,
		ProjectID:        req.ProjectID,
		TaskInput:        req.TaskInput,
		AssembledContext: rendered,
		TargetPlatform:   platformEnum(platform),
		TokenCount:       tokenCount,
		QualityScore:     quality.Normalized(),
		Sections:         sections,
		Metadata:         metaJSON,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		slog.Error("session write failed, returning synthetic id", "error", err)
		return uuid.New().String(), false
	}
	return session.ID, true
}

func normalizePlatform(p string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "chatgpt":
		return "chatgpt", nil
	case "claude":
		return "claude", nil
	default:
		return "", fmt.Errorf("service.Tailor: unknown targetPlatform %q", p)
	}
}

func platformEnum(p string) model.Platform {
	if p == "claude" {
		return model.PlatformClaude
	}
	return model.PlatformChatGPT
}
