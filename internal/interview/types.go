// Package interview contains the core conversational session logic: the turn
// recorder, the answer quality evaluator, the heuristic scorer, and the
// [Engine] state machine that drives a full voice interview from greeting to
// final summary.
package interview

import (
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	// SpeakerInterviewer marks turns spoken by the AI interviewer.
	SpeakerInterviewer Speaker = "interviewer"

	// SpeakerCandidate marks turns spoken by the human candidate.
	SpeakerCandidate Speaker = "candidate"
)

// QualityTier grades the substance of a candidate answer.
type QualityTier string

const (
	QualityExcellent        QualityTier = "excellent"
	QualityGood             QualityTier = "good"
	QualityNeedsImprovement QualityTier = "needs-improvement"
)

// Phase is the stage of an interview. Phases advance monotonically with the
// number of candidate answers; they never move backwards.
type Phase int

const (
	// PhaseIntroduction covers the greeting and the first exchanges.
	PhaseIntroduction Phase = iota

	// PhaseBackground probes education and career history.
	PhaseBackground

	// PhaseExperience digs into past roles and concrete work.
	PhaseExperience

	// PhaseTechnical covers role-specific skill questions.
	PhaseTechnical

	// PhaseClosing wraps up; one more exchange ends the interview.
	PhaseClosing
)

var phaseNames = [...]string{
	PhaseIntroduction: "introduction",
	PhaseBackground:   "background",
	PhaseExperience:   "experience",
	PhaseTechnical:    "technical",
	PhaseClosing:      "closing",
}

// String returns the lowercase phase name.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Turn is one utterance in the transcript.
type Turn struct {
	Speaker   Speaker
	Text      string
	Quality   QualityTier // only meaningful for candidate turns
	Timestamp time.Time
}

// SessionConfig describes one interview session.
type SessionConfig struct {
	// SessionID uniquely identifies the session.
	SessionID string

	// JobTitle is the position being interviewed for.
	JobTitle string

	// Company is the hiring company name, optional.
	Company string

	// JobDescription is the posting text the interviewer tailors questions
	// to, optional.
	JobDescription string

	// CandidateName is how the interviewer addresses the candidate.
	CandidateName string

	// CVText is the candidate's CV or resume as plain text, optional. Fed to
	// the question generator so follow-ups can reference actual experience.
	CVText string

	// Persona selects the interviewer's personality.
	Persona Persona

	// Language is a BCP-47-ish language tag, "en" or "es".
	Language string
}

// Persona is the interviewer personality.
type Persona string

const (
	PersonaProfessional Persona = "professional"
	PersonaFriendly     Persona = "friendly"
	PersonaExpert       Persona = "expert"
)

// IsValid reports whether the persona is one of the known values.
func (p Persona) IsValid() bool {
	switch p {
	case PersonaProfessional, PersonaFriendly, PersonaExpert:
		return true
	}
	return false
}

// Analysis is the post-interview assessment, either produced remotely by the
// language model or locally by the heuristic scorer.
type Analysis struct {
	OverallScore int      `json:"overallScore"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Feedback     string   `json:"feedback"`
}

// Result is the final outcome of a completed interview.
type Result struct {
	Config            SessionConfig
	Analysis          Analysis
	Turns             []Turn
	QuestionsAnswered int
	Duration          time.Duration
	CompletedAt       time.Time
}
