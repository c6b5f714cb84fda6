// Package migrations holds the embedded database schema and the bootstrap
// routine that applies it.
package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the full database schema. Statements are idempotent so the
// bootstrap can run on every deploy.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS projects (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_projects_user ON projects (user_id);

CREATE TABLE IF NOT EXISTS documents (
	id           UUID PRIMARY KEY,
	project_id   UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL,
	filename     TEXT NOT NULL,
	mime_type    TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL,
	storage_path TEXT NOT NULL,
	checksum     TEXT,
	status       TEXT NOT NULL DEFAULT 'PROCESSING',
	status_error TEXT,
	chunk_count  INT NOT NULL DEFAULT 0,
	metadata     JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents (project_id);

CREATE TABLE IF NOT EXISTS document_chunks (
	id            UUID PRIMARY KEY,
	document_id   UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	project_id    UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	position      INT NOT NULL,
	content       TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	token_count   INT NOT NULL,
	section_title TEXT NOT NULL DEFAULT '',
	embedding     vector(768),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks (document_id, position);
CREATE INDEX IF NOT EXISTS idx_chunks_project ON document_chunks (project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
	USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS tailor_sessions (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id           TEXT NOT NULL,
	project_id        UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	task_input        TEXT NOT NULL,
	assembled_context TEXT NOT NULL,
	target_platform   TEXT NOT NULL,
	token_count       INT NOT NULL,
	quality_score     DOUBLE PRECISION NOT NULL,
	sections          TEXT[] NOT NULL DEFAULT '{}',
	metadata          JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON tailor_sessions (project_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON tailor_sessions (user_id);
`

// Apply runs the schema against the pool.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrations.Apply: %w", err)
	}
	return nil
}
