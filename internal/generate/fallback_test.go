package generate

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/MrWong99/intervox/internal/interview"
)

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		answer string
		want   Topic
	}{
		{"The biggest challenge was scaling the database.", TopicChallenge},
		{"I collaborated closely with my team on the rollout.", TopicTeam},
		{"I'm proud of the award we won that year.", TopicAchievement},
		{"I worked at a logistics company for six years.", TopicExperience},
		{"I like hiking and reading.", TopicGeneral},
		{"Fue un problema muy difícil de resolver.", TopicChallenge},
		{"Trabajé en una empresa de software.", TopicExperience},
		{"", TopicGeneral},
		// Challenge vocabulary wins over experience vocabulary.
		{"The most difficult project at the company.", TopicChallenge},
	}

	for _, tt := range tests {
		if got := DetectTopic(tt.answer); got != tt.want {
			t.Errorf("DetectTopic(%q) = %q, want %q", tt.answer, got, tt.want)
		}
	}
}

func TestFallbackQuestionDeterministicWithSeed(t *testing.T) {
	cfg := interview.SessionConfig{Persona: interview.PersonaFriendly, Language: "en"}

	a := NewFallback(rand.New(rand.NewSource(42)))
	b := NewFallback(rand.New(rand.NewSource(42)))
	for i := 0; i < 10; i++ {
		qa := a.Question(cfg, "tell me about your team")
		qb := b.Question(cfg, "tell me about your team")
		if qa != qb {
			t.Fatalf("same seed diverged at call %d: %q vs %q", i, qa, qb)
		}
	}
}

func TestFallbackQuestionNeverEmpty(t *testing.T) {
	f := NewFallback(rand.New(rand.NewSource(7)))
	personas := []interview.Persona{
		interview.PersonaProfessional,
		interview.PersonaFriendly,
		interview.PersonaExpert,
		interview.Persona("nonsense"),
	}
	answers := []string{
		"", "my team was great", "a hard problem", "I achieved a lot",
		"I worked somewhere", "totally unrelated words",
	}
	for _, p := range personas {
		for _, lang := range []string{"en", "es", "fr"} {
			cfg := interview.SessionConfig{Persona: p, Language: lang}
			for _, a := range answers {
				if q := f.Question(cfg, a); q == "" {
					t.Errorf("empty question for persona=%q lang=%q answer=%q", p, lang, a)
				}
			}
		}
	}
}

func TestFallbackGreeting(t *testing.T) {
	f := NewFallback(rand.New(rand.NewSource(1)))

	en := f.Greeting(interview.SessionConfig{
		JobTitle:      "Data Analyst",
		CandidateName: "Alex",
		Persona:       interview.PersonaProfessional,
		Language:      "en",
	})
	if !strings.Contains(en, "Alex") || !strings.Contains(en, "Data Analyst") {
		t.Errorf("greeting is missing the name or job title: %q", en)
	}

	es := f.Greeting(interview.SessionConfig{
		JobTitle: "Analista",
		Persona:  interview.PersonaFriendly,
		Language: "es",
	})
	if !strings.Contains(es, "candidato") {
		t.Errorf("Spanish greeting without a name should address the candidate: %q", es)
	}

	anon := f.Greeting(interview.SessionConfig{
		JobTitle: "Engineer",
		Persona:  interview.PersonaExpert,
		Language: "en",
	})
	if !strings.Contains(anon, "there") {
		t.Errorf("English greeting without a name should still address someone: %q", anon)
	}
}

func TestFallbackClosing(t *testing.T) {
	f := NewFallback(rand.New(rand.NewSource(1)))
	got := f.Closing(interview.SessionConfig{
		CandidateName: "Riley",
		Persona:       interview.PersonaFriendly,
		Language:      "en",
	})
	if !strings.Contains(got, "Riley") {
		t.Errorf("closing does not address the candidate: %q", got)
	}
}

func TestFallbackAnalysisScore(t *testing.T) {
	f := NewFallback(rand.New(rand.NewSource(1)))

	tests := []struct {
		questions int
		want      int
	}{
		{0, 75},
		{5, 85},
		{8, 90}, // cap reached
		{20, 90},
	}
	for _, tt := range tests {
		a := f.Analysis(tt.questions, "en")
		if a.OverallScore != tt.want {
			t.Errorf("Analysis(%d).OverallScore = %d, want %d", tt.questions, a.OverallScore, tt.want)
		}
	}

	es := f.Analysis(3, "es")
	if es.Feedback == "" || len(es.Strengths) == 0 || len(es.Improvements) == 0 {
		t.Error("Spanish analysis has empty fields")
	}
	if strings.Contains(es.Feedback, "Thank you") {
		t.Errorf("Spanish analysis returned English feedback: %q", es.Feedback)
	}
}
