package interview

import (
	"testing"
	"time"
)

func TestHeuristicScore(t *testing.T) {
	cfg := DefaultScoringConfig()

	tests := []struct {
		name      string
		excellent int
		good      int
		questions int
		duration  time.Duration
		want      int
	}{
		{
			name: "empty interview clamps to floor",
			want: 70, // base 70, no bonuses, above floor
		},
		{
			name:      "question bonus capped at 20",
			questions: 15,
			duration:  5 * time.Minute,
			want:      90, // 70 + min(20, 30)
		},
		{
			name:      "duration bonus inside window",
			questions: 5,
			duration:  15 * time.Minute,
			want:      90, // 70 + 10 + 10
		},
		{
			name:      "duration bonus excluded outside window",
			questions: 5,
			duration:  45 * time.Minute,
			want:      80, // 70 + 10
		},
		{
			name:      "score clamps to ceiling",
			excellent: 5,
			good:      5,
			questions: 10,
			duration:  20 * time.Minute,
			want:      100, // 70+40+20+20+10 clamped
		},
		{
			name:      "excellent and good bonuses",
			excellent: 2,
			good:      3,
			questions: 5,
			duration:  5 * time.Minute,
			want:      70 + 16 + 12 + 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeuristicScore(cfg, tt.excellent, tt.good, tt.questions, tt.duration)
			if got != tt.want {
				t.Errorf("HeuristicScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeuristicScoreBounds(t *testing.T) {
	cfg := DefaultScoringConfig()
	for q := 0; q <= 20; q++ {
		for e := 0; e <= 10; e++ {
			got := HeuristicScore(cfg, e, 0, q, 20*time.Minute)
			if got < cfg.Floor || got > cfg.Ceiling {
				t.Fatalf("HeuristicScore(e=%d, q=%d) = %d outside [%d, %d]", e, q, got, cfg.Floor, cfg.Ceiling)
			}
		}
	}
}

func TestHeuristicAnalysis(t *testing.T) {
	r := NewRecorder(DefaultPhaseThresholds())
	r.RecordCandidate("I don't know")
	r.End()

	a := HeuristicAnalysis(DefaultScoringConfig(), r)
	if a.OverallScore < 60 || a.OverallScore > 100 {
		t.Errorf("OverallScore = %d outside [60, 100]", a.OverallScore)
	}
	if len(a.Strengths) == 0 {
		t.Error("Strengths is empty")
	}
	if len(a.Improvements) == 0 {
		t.Error("Improvements is empty")
	}
	if a.Feedback == "" {
		t.Error("Feedback is empty")
	}
}
