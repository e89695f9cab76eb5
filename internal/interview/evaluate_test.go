package interview

import (
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	// 60 words, with a concrete example and a quantified outcome.
	detailed := "For example, I led a project to rebuild our billing pipeline. " +
		"We migrated seven services over four months while keeping the old system running. " +
		"The new pipeline increased revenue by 20% in the first quarter and reduced invoice errors dramatically. " +
		"I coordinated a team of five engineers and presented the results to leadership every other week throughout."

	tests := []struct {
		name   string
		answer string
		want   QualityTier
	}{
		{
			name:   "long answer with example and numbers",
			answer: detailed,
			want:   QualityExcellent,
		},
		{
			name:   "terse answer",
			answer: "I don't know",
			want:   QualityNeedsImprovement,
		},
		{
			name:   "empty answer",
			answer: "",
			want:   QualityNeedsImprovement,
		},
		{
			name: "medium answer with example only",
			answer: "In my last role I developed a reporting dashboard for the sales organisation. " +
				"It pulled data from several internal systems and presented it in a single view " +
				"that managers could check every morning without asking analysts.",
			want: QualityGood,
		},
		{
			name: "medium answer with numbers only",
			answer: "Our busiest quarter we handled around 300 thousand requests a day and the on-call " +
				"rotation covered twelve people across three offices, so the runbooks had to be airtight " +
				"because any of us could be paged at any hour of any night.",
			want: QualityGood,
		},
		{
			name: "long but vague answer",
			answer: strings.Repeat("I am a very motivated person and I always try my best no matter what. ", 5) +
				"My attitude is positive and my communication is strong.",
			want: QualityNeedsImprovement,
		},
		{
			name:   "short answer despite example and numbers",
			answer: "I led a project that improved throughput by 40%.",
			want:   QualityNeedsImprovement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.answer); got != tt.want {
				t.Errorf("Evaluate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	answer := "During my time at the agency I managed a team of 8 people on several client projects."
	first := Evaluate(answer)
	for i := 0; i < 10; i++ {
		if got := Evaluate(answer); got != first {
			t.Fatalf("Evaluate() changed between calls: %q then %q", first, got)
		}
	}
}
