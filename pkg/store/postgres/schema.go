package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the interview_summaries table. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS interview_summaries (
    session_id         TEXT PRIMARY KEY,
    job_title          TEXT NOT NULL DEFAULT '',
    company            TEXT NOT NULL DEFAULT '',
    candidate_name     TEXT NOT NULL DEFAULT '',
    persona            TEXT NOT NULL DEFAULT '',
    language           TEXT NOT NULL DEFAULT '',
    overall_score      INTEGER NOT NULL,
    duration_minutes   DOUBLE PRECISION NOT NULL,
    questions_answered INTEGER NOT NULL,
    strengths          TEXT[] NOT NULL DEFAULT '{}',
    improvements       TEXT[] NOT NULL DEFAULT '{}',
    feedback           TEXT NOT NULL DEFAULT '',
    turns              JSONB NOT NULL DEFAULT '[]',
    completed_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS interview_summaries_completed_at_idx
    ON interview_summaries (completed_at DESC);

CREATE INDEX IF NOT EXISTS interview_summaries_job_title_idx
    ON interview_summaries (job_title);
`

// ensureSchema applies the schema on startup.
func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("summary store: ensure schema: %w", err)
	}
	return nil
}
