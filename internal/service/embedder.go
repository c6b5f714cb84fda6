package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient abstracts the embedding backend for testability.
// Implementations retry transient failures internally; a returned error
// means the backend is unavailable.
type EmbeddingClient interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore abstracts bulk insertion of chunk vectors.
type VectorStore interface {
	UpsertChunkVectors(ctx context.Context, projectID string, chunkIDs []string, vectors [][]float32) error
}

// EmbedderService generates vectors for chunk content and persists them in
// the vector index. Batch output order matches input order; a batch either
// fully succeeds or fully fails.
type EmbedderService struct {
	client      EmbeddingClient
	store       VectorStore
	dimensions  int
	batchSize   int
	concurrency int
}

// NewEmbedderService creates an EmbedderService.
func NewEmbedderService(client EmbeddingClient, store VectorStore, dimensions, batchSize int) *EmbedderService {
	if dimensions <= 0 {
		dimensions = 768
	}
	if batchSize <= 0 || batchSize > 100 {
		batchSize = 100
	}
	return &EmbedderService{
		client:      client,
		store:       store,
		dimensions:  dimensions,
		batchSize:   batchSize,
		concurrency: 4,
	}
}

// Embed generates one vector per input text, batching as needed. Every
// vector is validated against the configured dimension and L2-normalized.
func (s *EmbedderService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("service.Embed: no texts provided")
	}

	allVectors := make([][]float32, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		start := start
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vectors, err := s.client.EmbedDocuments(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("service.Embed: batch %d-%d: %w: %v", start, end, ErrEmbedderUnavailable, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("service.Embed: got %d vectors for %d texts", len(vectors), end-start)
			}
			for j, vec := range vectors {
				if len(vec) != s.dimensions {
					return fmt.Errorf("service.Embed: vector %d has %d dimensions, want %d", start+j, len(vec), s.dimensions)
				}
				allVectors[start+j] = l2Normalize(vec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return allVectors, nil
}

// EmbedQuery generates a single normalized query vector.
func (s *EmbedderService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("service.EmbedQuery: %w: %v", ErrEmbedderUnavailable, err)
	}
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("service.EmbedQuery: vector has %d dimensions, want %d", len(vec), s.dimensions)
	}
	return l2Normalize(vec), nil
}

// EmbedAndStore generates embeddings for persisted chunks and upserts them
// into the project's vector collection. Implements the Embedder interface
// used by PipelineService.
func (s *EmbedderService) EmbedAndStore(ctx context.Context, projectID string, chunkIDs []string, contents []string) error {
	if len(chunkIDs) != len(contents) {
		return fmt.Errorf("service.EmbedAndStore: id count (%d) != content count (%d)", len(chunkIDs), len(contents))
	}

	vectors, err := s.Embed(ctx, contents)
	if err != nil {
		return err
	}

	if err := s.store.UpsertChunkVectors(ctx, projectID, chunkIDs, vectors); err != nil {
		return fmt.Errorf("service.EmbedAndStore: upsert: %w", err)
	}

	slog.Info("embeddings stored", "project_id", projectID, "count", len(chunkIDs))
	return nil
}

// l2Normalize scales a vector to unit length.
func l2Normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
