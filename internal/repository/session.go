package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/connexus-ai/tailor-backend/internal/model"
	"github.com/connexus-ai/tailor-backend/internal/service"
)

// SessionRepo persists tailor sessions. Rows are append-only: there is no
// update path, and concurrent writes for one user are all allowed.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

var _ service.SessionStore = (*SessionRepo)(nil)

func (r *SessionRepo) Create(ctx context.Context, s *model.TailorSession) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tailor_sessions (id, user_id, project_id, task_input, assembled_context,
			target_platform, token_count, quality_score, sections, metadata, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		s.UserID, s.ProjectID, s.TaskInput, s.AssembledContext,
		string(s.TargetPlatform), s.TokenCount, s.QualityScore,
		pq.Array(s.Sections), s.Metadata, now,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.Session.Create: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*model.TailorSession, error) {
	s := &model.TailorSession{}
	var platform string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, project_id, task_input, assembled_context, target_platform,
			token_count, quality_score, sections, metadata, created_at
		FROM tailor_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.ProjectID, &s.TaskInput, &s.AssembledContext, &platform,
		&s.TokenCount, &s.QualityScore, pq.Array(&s.Sections), &s.Metadata, &s.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("repository.Session.GetByID: %w", err)
	}
	s.TargetPlatform = model.Platform(platform)
	return s, nil
}

// ListByProject returns sessions newest first, bounded by limit.
func (r *SessionRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]model.TailorSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, project_id, task_input, assembled_context, target_platform,
			token_count, quality_score, sections, metadata, created_at
		FROM tailor_sessions WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.Session.ListByProject: %w", err)
	}
	defer rows.Close()

	var out []model.TailorSession
	for rows.Next() {
		var s model.TailorSession
		var platform string
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProjectID, &s.TaskInput, &s.AssembledContext, &platform,
			&s.TokenCount, &s.QualityScore, pq.Array(&s.Sections), &s.Metadata, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.Session.ListByProject: scan: %w", err)
		}
		s.TargetPlatform = model.Platform(platform)
		out = append(out, s)
	}
	return out, rows.Err()
}
