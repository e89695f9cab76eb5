// Package postgres implements store.SummaryStore on top of PostgreSQL using
// pgx connection pooling. One row per session, upserted on save.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/intervox/pkg/store"
)

// Compile-time interface assertion.
var _ store.SummaryStore = (*Store)(nil)

// Store is a PostgreSQL-backed summary store. Obtain one via [New].
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at connString, ensures the schema exists, and
// returns a ready Store. Call [Store.Close] when done.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("summary store: connect: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool without touching the schema. Used in
// tests and by callers that manage migrations themselves.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save implements [store.SummaryStore] with an upsert so a re-save of the
// same session wins.
func (s *Store) Save(ctx context.Context, summary store.Summary) error {
	const q = `
		INSERT INTO interview_summaries
		    (session_id, job_title, company, candidate_name, persona, language,
		     overall_score, duration_minutes, questions_answered,
		     strengths, improvements, feedback, turns, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO UPDATE SET
		    job_title          = EXCLUDED.job_title,
		    company            = EXCLUDED.company,
		    candidate_name     = EXCLUDED.candidate_name,
		    persona            = EXCLUDED.persona,
		    language           = EXCLUDED.language,
		    overall_score      = EXCLUDED.overall_score,
		    duration_minutes   = EXCLUDED.duration_minutes,
		    questions_answered = EXCLUDED.questions_answered,
		    strengths          = EXCLUDED.strengths,
		    improvements       = EXCLUDED.improvements,
		    feedback           = EXCLUDED.feedback,
		    turns              = EXCLUDED.turns,
		    completed_at       = EXCLUDED.completed_at`

	turns, err := json.Marshal(summary.Turns)
	if err != nil {
		return fmt.Errorf("summary store: marshal turns: %w", err)
	}

	_, err = s.pool.Exec(ctx, q,
		summary.SessionID,
		summary.JobTitle,
		summary.Company,
		summary.CandidateName,
		summary.Persona,
		summary.Language,
		summary.OverallScore,
		summary.DurationMinutes,
		summary.QuestionsAnswered,
		summary.Strengths,
		summary.Improvements,
		summary.Feedback,
		turns,
		summary.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("summary store: save %q: %w", summary.SessionID, err)
	}
	return nil
}

const selectColumns = `session_id, job_title, company, candidate_name, persona, language,
	overall_score, duration_minutes, questions_answered,
	strengths, improvements, feedback, turns, completed_at`

// Get implements [store.SummaryStore].
func (s *Store) Get(ctx context.Context, sessionID string) (*store.Summary, error) {
	q := "SELECT " + selectColumns + "\nFROM interview_summaries\nWHERE session_id = $1"

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("summary store: get %q: %w", sessionID, err)
	}
	summary, err := pgx.CollectOneRow(rows, scanSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("summary store: get %q: %w", sessionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("summary store: get %q: %w", sessionID, err)
	}
	return &summary, nil
}

// List implements [store.SummaryStore]. Results are ordered newest first.
func (s *Store) List(ctx context.Context, filter store.ListFilter) ([]store.Summary, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"TRUE"}
	if filter.JobTitle != "" {
		conditions = append(conditions, "job_title = "+next(filter.JobTitle))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "completed_at > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "completed_at < "+next(filter.Before))
	}

	q := "SELECT " + selectColumns + "\n" +
		"FROM   interview_summaries\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY completed_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("summary store: list: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, scanSummary)
	if err != nil {
		return nil, fmt.Errorf("summary store: scan rows: %w", err)
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	return summaries, nil
}

// Delete implements [store.SummaryStore].
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM interview_summaries WHERE session_id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("summary store: delete %q: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("summary store: delete %q: %w", sessionID, store.ErrNotFound)
	}
	return nil
}

// scanSummary scans one pgx row into a store.Summary.
func scanSummary(row pgx.CollectableRow) (store.Summary, error) {
	var (
		s        store.Summary
		turnsRaw []byte
	)
	if err := row.Scan(
		&s.SessionID,
		&s.JobTitle,
		&s.Company,
		&s.CandidateName,
		&s.Persona,
		&s.Language,
		&s.OverallScore,
		&s.DurationMinutes,
		&s.QuestionsAnswered,
		&s.Strengths,
		&s.Improvements,
		&s.Feedback,
		&turnsRaw,
		&s.CompletedAt,
	); err != nil {
		return store.Summary{}, err
	}
	if len(turnsRaw) > 0 {
		if err := json.Unmarshal(turnsRaw, &s.Turns); err != nil {
			return store.Summary{}, fmt.Errorf("unmarshal turns: %w", err)
		}
	}
	return s, nil
}
