package interview

import (
	"fmt"
	"time"
)

// ScoringConfig tunes the heuristic interview score. The zero value is not
// usable; start from [DefaultScoringConfig].
type ScoringConfig struct {
	// Base is the starting score before bonuses.
	Base int

	// ExcellentBonus is added per excellent answer.
	ExcellentBonus int

	// GoodBonus is added per good answer.
	GoodBonus int

	// PerQuestionBonus is added per answered question, capped at
	// QuestionBonusCap.
	PerQuestionBonus int
	QuestionBonusCap int

	// DurationBonus is added when the interview length falls inside the
	// [MinIdealDuration, MaxIdealDuration] window.
	DurationBonus    int
	MinIdealDuration time.Duration
	MaxIdealDuration time.Duration

	// Floor and Ceiling clamp the final score.
	Floor   int
	Ceiling int
}

// DefaultScoringConfig returns the standard scoring weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Base:             70,
		ExcellentBonus:   8,
		GoodBonus:        4,
		PerQuestionBonus: 2,
		QuestionBonusCap: 20,
		DurationBonus:    10,
		MinIdealDuration: 10 * time.Minute,
		MaxIdealDuration: 30 * time.Minute,
		Floor:            60,
		Ceiling:          100,
	}
}

// HeuristicScore computes the local interview score from transcript facts
// alone. It is the authority when no remote analysis arrives.
func HeuristicScore(cfg ScoringConfig, excellent, good, questions int, duration time.Duration) int {
	score := cfg.Base
	score += excellent * cfg.ExcellentBonus
	score += good * cfg.GoodBonus

	qBonus := questions * cfg.PerQuestionBonus
	if qBonus > cfg.QuestionBonusCap {
		qBonus = cfg.QuestionBonusCap
	}
	score += qBonus

	if duration >= cfg.MinIdealDuration && duration <= cfg.MaxIdealDuration {
		score += cfg.DurationBonus
	}

	return clampScore(cfg, score)
}

// clampScore forces a score into the configured [Floor, Ceiling] window.
// Applied to every score that can reach a summary, whatever produced it.
func clampScore(cfg ScoringConfig, score int) int {
	if score < cfg.Floor {
		return cfg.Floor
	}
	if score > cfg.Ceiling {
		return cfg.Ceiling
	}
	return score
}

// HeuristicAnalysis builds a complete [Analysis] from transcript facts, used
// when remote analysis is unavailable or malformed.
func HeuristicAnalysis(cfg ScoringConfig, r *Recorder) Analysis {
	excellent, good, needsWork := r.QualityCounts()
	questions := r.QuestionsAnswered()
	score := HeuristicScore(cfg, excellent, good, questions, r.Duration())

	var strengths []string
	if excellent > 0 {
		strengths = append(strengths, "Gave detailed answers with concrete examples and measurable results")
	}
	if good > 0 {
		strengths = append(strengths, "Supported several answers with specifics")
	}
	if questions >= 8 {
		strengths = append(strengths, "Engaged through a full-length interview")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "Completed the interview")
	}

	var improvements []string
	if needsWork > 0 {
		improvements = append(improvements, "Expand brief answers with a concrete example and its outcome")
	}
	if excellent == 0 {
		improvements = append(improvements, "Quantify results where possible (percentages, team sizes, timelines)")
	}
	if len(improvements) == 0 {
		improvements = append(improvements, "Keep practicing to maintain this level")
	}

	return Analysis{
		OverallScore: score,
		Strengths:    strengths,
		Improvements: improvements,
		Feedback: fmt.Sprintf(
			"You answered %d questions over %d minutes. %d of your answers stood out for depth and concrete detail.",
			questions, int(r.Duration().Minutes()), excellent+good),
	}
}
