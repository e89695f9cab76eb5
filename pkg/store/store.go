// Package store defines the persistence contract for completed interview
// summaries: simple keyed storage with last-write-wins semantics, no
// transactional requirements.
//
// Two implementations exist: postgres (durable, pgx-backed) and memory
// (process-local, used when no database is configured and in tests).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Delete when no summary exists for the
// given session ID.
var ErrNotFound = errors.New("summary not found")

// Turn is one utterance in the persisted session log.
type Turn struct {
	// Speaker is "interviewer" or "candidate".
	Speaker string `json:"speaker"`

	// Text is the utterance content.
	Text string `json:"text"`

	// Quality is the tier assigned to candidate turns; empty for
	// interviewer turns.
	Quality string `json:"quality,omitempty"`

	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the terminal artifact of one interview session. Written once at
// termination and immutable afterwards (a re-save of the same session ID
// overwrites, last write wins).
type Summary struct {
	// SessionID is the opaque key this summary is stored under.
	SessionID string

	// JobTitle, Company, and CandidateName echo the session configuration
	// for listing and filtering.
	JobTitle      string
	Company       string
	CandidateName string

	// Persona is the interviewer persona used ("friendly", "professional",
	// "expert").
	Persona string

	// Language is the BCP-47 language tag the session ran in.
	Language string

	// OverallScore is the final score, always within [60, 100].
	OverallScore int

	// DurationMinutes is the wall-clock length of the session.
	DurationMinutes float64

	// QuestionsAnswered is the number of candidate turns.
	QuestionsAnswered int

	// Strengths, Improvements, and Feedback come from the remote analysis
	// when it succeeded, or from the local fallback analysis otherwise.
	Strengths    []string
	Improvements []string
	Feedback     string

	// Turns is the ordered session log.
	Turns []Turn

	// CompletedAt is when the session ended.
	CompletedAt time.Time
}

// ListFilter narrows and bounds List results.
type ListFilter struct {
	// JobTitle, when non-empty, restricts results to summaries with this
	// exact job title.
	JobTitle string

	// After / Before bound CompletedAt. Zero values mean unbounded.
	After  time.Time
	Before time.Time

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// SummaryStore is the persistence abstraction consumed by the session
// manager. All methods are safe for concurrent use.
type SummaryStore interface {
	// Save writes summary under its SessionID, overwriting any previous
	// summary for the same session.
	Save(ctx context.Context, summary Summary) error

	// Get returns the summary stored under sessionID, or an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Summary, error)

	// List returns summaries matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Summary, error)

	// Delete removes the summary stored under sessionID. Deleting a missing
	// session returns an error wrapping ErrNotFound.
	Delete(ctx context.Context, sessionID string) error
}
