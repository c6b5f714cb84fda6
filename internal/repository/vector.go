package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/tailor-backend/internal/service"
)

// upsertBatchSize bounds vector upserts per round trip.
const upsertBatchSize = 100

// VectorRepo is the pgvector-backed vector index. Each project is its own
// collection, enforced by the project_id filter on every query. The chunk
// id doubles as the vector entry id.
type VectorRepo struct {
	pool *pgxpool.Pool
}

// NewVectorRepo creates a VectorRepo.
func NewVectorRepo(pool *pgxpool.Pool) *VectorRepo {
	return &VectorRepo{pool: pool}
}

var (
	_ service.VectorStore   = (*VectorRepo)(nil)
	_ service.VectorQuerier = (*VectorRepo)(nil)
	_ service.VectorDeleter = (*VectorRepo)(nil)
)

// UpsertChunkVectors writes embeddings onto chunk rows, idempotent by chunk
// id, in batches of at most 100.
func (r *VectorRepo) UpsertChunkVectors(ctx context.Context, projectID string, chunkIDs []string, vectors [][]float32) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("repository.Vector.Upsert: id count (%d) != vector count (%d)", len(chunkIDs), len(vectors))
	}

	for start := 0; start < len(chunkIDs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(`
				UPDATE document_chunks SET embedding = $1
				WHERE id = $2 AND project_id = $3`,
				pgvector.NewVector(vectors[i]), chunkIDs[i], projectID,
			)
		}

		br := r.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("repository.Vector.Upsert: entry %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("repository.Vector.Upsert: close batch: %w", err)
		}
	}
	return nil
}

// SimilaritySearch finds the top-K chunks most similar to queryVec by
// cosine distance, scoped to one project and to READY documents. Results
// are sorted by score descending.
func (r *VectorRepo) SimilaritySearch(ctx context.Context, projectID string, queryVec []float32, topK int) ([]service.ChunkMatch, error) {
	if topK <= 0 {
		topK = 20
	}
	embedding := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT dc.id, dc.document_id, dc.project_id, dc.position, dc.content, dc.token_count, dc.created_at,
			1 - (dc.embedding <=> $1::vector) AS similarity
		FROM document_chunks dc
		JOIN documents d ON dc.document_id = d.id
		WHERE dc.project_id = $2
			AND d.status = 'READY'
			AND dc.embedding IS NOT NULL
		ORDER BY dc.embedding <=> $1::vector
		LIMIT $3`,
		embedding, projectID, topK)
	if err != nil {
		return nil, fmt.Errorf("repository.Vector.SimilaritySearch: %w", err)
	}
	defer rows.Close()

	var results []service.ChunkMatch
	for rows.Next() {
		var m service.ChunkMatch
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.ProjectID, &m.Chunk.Position,
			&m.Chunk.Content, &m.Chunk.TokenCount, &m.Chunk.CreatedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("repository.Vector.SimilaritySearch: scan: %w", err)
		}
		results = append(results, m)
	}

	slog.Debug("similarity search complete", "project_id", projectID, "results", len(results), "top_k", topK)
	return results, rows.Err()
}

// DeleteByDocumentID clears vector entries for a document's chunks.
// Chunk rows themselves are owned by ChunkRepo.
func (r *VectorRepo) DeleteByDocumentID(ctx context.Context, projectID, documentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE document_chunks SET embedding = NULL
		WHERE project_id = $1 AND document_id = $2`, projectID, documentID)
	if err != nil {
		return fmt.Errorf("repository.Vector.DeleteByDocumentID: %w", err)
	}
	return nil
}

// DeleteCollection clears every vector in a project's collection.
func (r *VectorRepo) DeleteCollection(ctx context.Context, projectID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE document_chunks SET embedding = NULL WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("repository.Vector.DeleteCollection: %w", err)
	}
	return nil
}
