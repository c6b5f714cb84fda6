package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// ChunkRepo implements service.ChunkRepository and service.ChunkLister with
// pgx batching.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

var (
	_ service.ChunkRepository = (*ChunkRepo)(nil)
	_ service.ChunkLister     = (*ChunkRepo)(nil)
)

// BulkInsert stores chunks using pgx batching and returns the generated ids
// in chunk position order.
func (r *ChunkRepo) BulkInsert(ctx context.Context, projectID string, chunks []service.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	ids := make([]string, len(chunks))

	for i, c := range chunks {
		ids[i] = uuid.New().String()
		batch.Queue(`
			INSERT INTO document_chunks (id, document_id, project_id, position, content, content_hash, token_count, section_title, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ids[i], c.DocumentID, projectID, c.Position, c.Content, c.ContentHash, c.TokenCount, c.SectionTitle, now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("repository.Chunk.BulkInsert: chunk %d: %w", i, err)
		}
	}
	return ids, nil
}

// ChunksByIds returns chunk rows for the given ids.
func (r *ChunkRepo) ChunksByIds(ctx context.Context, ids []string) ([]model.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, project_id, position, content, token_count, created_at
		FROM document_chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository.Chunk.ChunksByIds: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListByProject returns up to limit chunks for a project, ordered by
// document then position. Used by the keyword-only degrade path.
func (r *ChunkRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, project_id, position, content, token_count, created_at
		FROM document_chunks WHERE project_id = $1
		ORDER BY document_id, position
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.Chunk.ListByProject: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// DeleteByDocumentID removes all chunks for a document.
func (r *ChunkRepo) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("repository.Chunk.DeleteByDocumentID: %w", err)
	}
	return nil
}

// CountByDocumentID returns the number of chunks for a document.
func (r *ChunkRepo) CountByDocumentID(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.Chunk.CountByDocumentID: %w", err)
	}
	return count, nil
}

func scanChunks(rows pgx.Rows) ([]model.DocumentChunk, error) {
	var out []model.DocumentChunk
	for rows.Next() {
		var c model.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.Position, &c.Content, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.Chunk: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
