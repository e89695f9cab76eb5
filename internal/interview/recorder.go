package interview

import (
	"sync"
	"time"
)

// PhaseThresholds maps candidate-answer counts to interview phases. A phase
// activates once the number of answered questions reaches its threshold.
type PhaseThresholds struct {
	Background int
	Experience int
	Technical  int
	Closing    int
}

// DefaultPhaseThresholds returns the standard pacing: two answers per phase.
func DefaultPhaseThresholds() PhaseThresholds {
	return PhaseThresholds{Background: 2, Experience: 4, Technical: 6, Closing: 8}
}

// Recorder accumulates the transcript of one session and derives the running
// state from it: how many questions the candidate has answered, the current
// phase, and the elapsed duration. Turns are append-only.
//
// All methods are safe for concurrent use.
type Recorder struct {
	thresholds PhaseThresholds
	now        func() time.Time

	mu        sync.Mutex
	turns     []Turn
	answered  int
	startedAt time.Time
	endedAt   time.Time
}

// RecorderOption customises a [Recorder].
type RecorderOption func(*Recorder)

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder with its start time set to now.
func NewRecorder(thresholds PhaseThresholds, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		thresholds: thresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()
	return r
}

// RecordInterviewer appends an interviewer turn.
func (r *Recorder) RecordInterviewer(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, Turn{
		Speaker:   SpeakerInterviewer,
		Text:      text,
		Timestamp: r.now(),
	})
}

// RecordCandidate grades and appends a candidate answer, then returns the
// assigned quality tier. Each candidate turn counts as one answered question.
func (r *Recorder) RecordCandidate(text string) QualityTier {
	quality := Evaluate(text)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, Turn{
		Speaker:   SpeakerCandidate,
		Text:      text,
		Quality:   quality,
		Timestamp: r.now(),
	})
	r.answered++
	return quality
}

// QuestionsAnswered returns the number of candidate turns recorded so far.
func (r *Recorder) QuestionsAnswered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answered
}

// Phase derives the current phase from the answered-question count.
func (r *Recorder) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phaseLocked()
}

func (r *Recorder) phaseLocked() Phase {
	switch {
	case r.answered >= r.thresholds.Closing:
		return PhaseClosing
	case r.answered >= r.thresholds.Technical:
		return PhaseTechnical
	case r.answered >= r.thresholds.Experience:
		return PhaseExperience
	case r.answered >= r.thresholds.Background:
		return PhaseBackground
	default:
		return PhaseIntroduction
	}
}

// Turns returns a copy of the transcript so far.
func (r *Recorder) Turns() []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Turn, len(r.turns))
	copy(out, r.turns)
	return out
}

// QualityCounts tallies candidate answers per tier.
func (r *Recorder) QualityCounts() (excellent, good, needsWork int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.turns {
		if t.Speaker != SpeakerCandidate {
			continue
		}
		switch t.Quality {
		case QualityExcellent:
			excellent++
		case QualityGood:
			good++
		default:
			needsWork++
		}
	}
	return excellent, good, needsWork
}

// StartedAt returns when the recorder was created.
func (r *Recorder) StartedAt() time.Time {
	return r.startedAt
}

// End freezes the session duration. Subsequent calls are no-ops, so the
// duration of a finished interview never drifts.
func (r *Recorder) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endedAt.IsZero() {
		r.endedAt = r.now()
	}
}

// Duration returns the elapsed time since start, frozen once End has been
// called.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.endedAt.IsZero() {
		return r.endedAt.Sub(r.startedAt)
	}
	return r.now().Sub(r.startedAt)
}
