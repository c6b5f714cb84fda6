package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/connexus-ai/tailor-backend/internal/model"
)

const (
	// scoreTopK is the wide candidate pool fetched from the vector index.
	scoreTopK = 40
	// rerankTopN bounds how many candidates go through the cross-encoder.
	rerankTopN = 20

	weightSemantic = 0.70
	weightKeyword  = 0.30
	weightBase     = 0.40
	weightRerank   = 0.60
)

// ScoredChunk is an immutable per-request scoring record.
type ScoredChunk struct {
	ChunkID       string   `json:"chunkId"`
	DocumentID    string   `json:"documentId"`
	Content       string   `json:"content"`
	Position      int      `json:"position"`
	TokenCount    int      `json:"tokenCount"`
	SemanticScore float64  `json:"semanticScore"`
	KeywordScore  float64  `json:"keywordScore"`
	RerankScore   *float64 `json:"rerankScore,omitempty"`
	FinalScore    float64  `json:"finalScore"`
	Rank          int      `json:"rank"`
}

// ChunkMatch is a vector-index hit joined with its chunk row.
type ChunkMatch struct {
	Chunk model.DocumentChunk
	Score float64
}

// VectorQuerier abstracts the per-project vector query.
type VectorQuerier interface {
	SimilaritySearch(ctx context.Context, projectID string, queryVec []float32, topK int) ([]ChunkMatch, error)
}

// ChunkLister fetches chunks without a vector, for keyword-only degrade.
type ChunkLister interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]model.DocumentChunk, error)
}

// QueryEmbedder abstracts query embedding for testability.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CrossEncoder scores (query, passage) pairs to calibrated [0,1] relevance.
// Two variants exist: a dedicated reranker API and an LLM-as-judge.
type CrossEncoder interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

// ScorerService ranks project chunks against a query with hybrid
// semantic+keyword scoring and an optional cross-encoder rerank.
type ScorerService struct {
	embedder QueryEmbedder
	searcher VectorQuerier
	lister   ChunkLister
	reranker CrossEncoder // nil = no rerank
}

// NewScorerService creates a ScorerService. reranker may be nil.
func NewScorerService(embedder QueryEmbedder, searcher VectorQuerier, lister ChunkLister, reranker CrossEncoder) *ScorerService {
	return &ScorerService{
		embedder: embedder,
		searcher: searcher,
		lister:   lister,
		reranker: reranker,
	}
}

// ScoreResult carries the ranked chunks plus degrade state.
type ScoreResult struct {
	Chunks   []ScoredChunk
	Degraded bool // true when semantic scoring was unavailable
}

// Score returns chunks ranked by finalScore for one query. Embedder failure
// is non-fatal: scoring degrades to keyword-only (semantic weight 0).
func (s *ScorerService) Score(ctx context.Context, projectID, query string, keyEntities []string) (*ScoreResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("service.Score: query is empty")
	}

	keywords := keywordSet(query, keyEntities)

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, degrading to keyword-only scoring", "error", err)
		return s.scoreKeywordOnly(ctx, projectID, keywords)
	}

	matches, err := s.searcher.SimilaritySearch(ctx, projectID, queryVec, scoreTopK)
	if err != nil {
		return nil, fmt.Errorf("service.Score: similarity search: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(matches))
	for _, m := range matches {
		kw := keywordOverlap(m.Chunk.Content, keywords)
		scored = append(scored, ScoredChunk{
			ChunkID:       m.Chunk.ID,
			DocumentID:    m.Chunk.DocumentID,
			Content:       m.Chunk.Content,
			Position:      m.Chunk.Position,
			TokenCount:    m.Chunk.TokenCount,
			SemanticScore: clamp01(m.Score),
			KeywordScore:  kw,
			FinalScore:    weightSemantic*clamp01(m.Score) + weightKeyword*kw,
		})
	}

	scored = s.applyRerank(ctx, query, scored)
	assignRanks(scored)
	return &ScoreResult{Chunks: scored}, nil
}

// scoreKeywordOnly ranks project chunks purely on keyword overlap.
func (s *ScorerService) scoreKeywordOnly(ctx context.Context, projectID string, keywords map[string]bool) (*ScoreResult, error) {
	chunks, err := s.lister.ListByProject(ctx, projectID, scoreTopK*4)
	if err != nil {
		return nil, fmt.Errorf("service.Score: list chunks: %w", err)
	}

	var scored []ScoredChunk
	for _, c := range chunks {
		kw := keywordOverlap(c.Content, keywords)
		if kw == 0 {
			continue
		}
		scored = append(scored, ScoredChunk{
			ChunkID:      c.ID,
			DocumentID:   c.DocumentID,
			Content:      c.Content,
			Position:     c.Position,
			TokenCount:   c.TokenCount,
			KeywordScore: kw,
			FinalScore:   weightKeyword * kw,
		})
	}

	sortScored(scored)
	if len(scored) > scoreTopK {
		scored = scored[:scoreTopK]
	}
	assignRanks(scored)
	return &ScoreResult{Chunks: scored, Degraded: true}, nil
}

// applyRerank runs the cross-encoder over the top N candidates and fuses
// scores. Reranker failure is non-fatal: base scores stand.
func (s *ScorerService) applyRerank(ctx context.Context, query string, scored []ScoredChunk) []ScoredChunk {
	if s.reranker == nil || len(scored) == 0 {
		return scored
	}

	sortScored(scored)
	n := rerankTopN
	if n > len(scored) {
		n = len(scored)
	}

	passages := make([]string, n)
	for i := 0; i < n; i++ {
		passages[i] = scored[i].Content
	}

	rerankScores, err := s.reranker.Rerank(ctx, query, passages)
	if err != nil || len(rerankScores) != n {
		slog.Warn("rerank failed, keeping base scores", "error", err)
		return scored
	}

	for i := 0; i < n; i++ {
		rs := clamp01(rerankScores[i])
		base := scored[i].FinalScore
		scored[i].RerankScore = &rs
		scored[i].FinalScore = weightBase*base + weightRerank*rs
	}
	return scored
}

// MergeScored combines results from parallel query rounds by chunkId,
// keeping the max finalScore per chunk, then reassigns ranks. The merge is
// deterministic for identical inputs.
func MergeScored(rounds ...[]ScoredChunk) []ScoredChunk {
	best := make(map[string]ScoredChunk)
	for _, round := range rounds {
		for _, sc := range round {
			prev, ok := best[sc.ChunkID]
			if !ok || sc.FinalScore > prev.FinalScore {
				best[sc.ChunkID] = sc
			}
		}
	}

	merged := make([]ScoredChunk, 0, len(best))
	for _, sc := range best {
		merged = append(merged, sc)
	}
	sortScored(merged)
	assignRanks(merged)
	return merged
}

// sortScored orders by finalScore desc with deterministic tie-breaks:
// semanticScore desc, then chunk position asc, then chunk id.
func sortScored(scored []ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		if scored[i].SemanticScore != scored[j].SemanticScore {
			return scored[i].SemanticScore > scored[j].SemanticScore
		}
		if scored[i].Position != scored[j].Position {
			return scored[i].Position < scored[j].Position
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})
}

func assignRanks(scored []ScoredChunk) {
	sortScored(scored)
	for i := range scored {
		scored[i].Rank = i + 1
	}
}

// keywordSet builds the lowercase keyword vocabulary from query words and
// key entities, stopword-filtered.
func keywordSet(query string, keyEntities []string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) >= 3 && !stopWords[w] {
			set[w] = true
		}
	}
	for _, e := range keyEntities {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = true
		}
	}
	return set
}

// keywordOverlap is the fraction of keywords present in content, in [0,1].
func keywordOverlap(content string, keywords map[string]bool) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
