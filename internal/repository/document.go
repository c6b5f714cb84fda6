package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// DocumentRepo implements service.DocumentStore with pgx.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

var _ service.DocumentStore = (*DocumentRepo)(nil)

const documentColumns = `id, project_id, user_id, filename, mime_type, size_bytes,
	storage_path, checksum, status, status_error, chunk_count, metadata, created_at, updated_at`

func (r *DocumentRepo) Create(ctx context.Context, d *model.Document) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, project_id, user_id, filename, mime_type, size_bytes,
			storage_path, status, chunk_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)`,
		d.ID, d.ProjectID, d.UserID, d.Filename, d.MimeType, d.SizeBytes,
		d.StoragePath, string(d.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("repository.Document.Create: %w", err)
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	d := &model.Document{}
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.ProjectID, &d.UserID, &d.Filename, &d.MimeType, &d.SizeBytes,
		&d.StoragePath, &d.Checksum, &status, &d.StatusError, &d.ChunkCount, &d.Metadata,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("repository.Document.GetByID: %w", err)
	}
	d.Status = model.DocumentStatus(status)
	return d, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, statusError *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET status = $1, status_error = $2, updated_at = $3 WHERE id = $4`,
		string(status), statusError, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.Document.UpdateStatus: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateChecksum(ctx context.Context, id, checksum string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET checksum = $1, updated_at = $2 WHERE id = $3`,
		checksum, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.Document.UpdateChecksum: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateMetadata(ctx context.Context, id string, metadata json.RawMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET metadata = $1, updated_at = $2 WHERE id = $3`,
		metadata, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.Document.UpdateMetadata: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET chunk_count = $1, updated_at = $2 WHERE id = $3`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository.Document.UpdateChunkCount: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.Document.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) ListByProject(ctx context.Context, projectID string) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("repository.Document.ListByProject: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		var status string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.UserID, &d.Filename, &d.MimeType, &d.SizeBytes,
			&d.StoragePath, &d.Checksum, &status, &d.StatusError, &d.ChunkCount, &d.Metadata,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.Document.ListByProject: scan: %w", err)
		}
		d.Status = model.DocumentStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
