package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// ProjectRepo implements service.ProjectRepository with pgx.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo creates a ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

var _ service.ProjectRepository = (*ProjectRepo)(nil)

func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.UserID, p.Name, p.Description, now, now,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.Project.Create: %w", err)
	}
	p.UpdatedAt = now
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.user_id, p.name, p.description,
			(SELECT count(*) FROM documents d WHERE d.project_id = p.id),
			p.created_at, p.updated_at
		FROM projects p WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.DocumentCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("repository.Project.GetByID: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects SET name = $1, description = $2, updated_at = $3
		WHERE id = $4`,
		p.Name, p.Description, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("repository.Project.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a project. Documents, chunks, and sessions cascade via
// foreign keys; vector entries live on the chunk rows and go with them.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.Project.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) ListByUser(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.name, p.description,
			(SELECT count(*) FROM documents d WHERE d.project_id = p.id),
			p.created_at, p.updated_at
		FROM projects p WHERE p.user_id = $1
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository.Project.ListByUser: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.DocumentCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.Project.ListByUser: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
