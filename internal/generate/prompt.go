// Package generate produces the interviewer's side of the conversation. The
// [Client] calls a language-model provider for the next question and the
// final analysis; the fallback layer in fallback.go keeps the interview
// moving when the model is unreachable.
package generate

import (
	"fmt"
	"strings"

	"github.com/MrWong99/intervox/internal/interview"
	"github.com/MrWong99/intervox/pkg/types"
)

// historyCap limits how many transcript turns are sent to the model. The
// system prompt always goes; beyond that only the most recent turns fit.
const historyCap = 20

// personaTraits describes each interviewer personality for the system prompt.
var personaTraits = map[interview.Persona]string{
	interview.PersonaProfessional: "You are formal and structured. You ask precise questions, acknowledge answers briefly, and keep the interview on schedule.",
	interview.PersonaFriendly:     "You are warm and encouraging. You react positively to answers, use the candidate's name, and put them at ease before probing deeper.",
	interview.PersonaExpert:       "You are a seasoned industry expert. You are direct and probing: you push back on vague answers, ask for evidence, and drill into technical depth.",
}

// languageInstructions tells the model which language to respond in.
var languageInstructions = map[string]string{
	"en": "Conduct the entire interview in English.",
	"es": "Conduct the entire interview in Spanish. Every question and remark must be in Spanish.",
}

// phaseGuidance steers the model toward phase-appropriate questions.
var phaseGuidance = map[interview.Phase]string{
	interview.PhaseIntroduction: "You are in the introduction phase: welcome the candidate and ask them to introduce themselves.",
	interview.PhaseBackground:   "You are in the background phase: ask about education, career history, and what drew them to this field.",
	interview.PhaseExperience:   "You are in the experience phase: dig into past roles, concrete projects, and outcomes.",
	interview.PhaseTechnical:    "You are in the technical phase: ask role-specific questions that test the skills this position needs.",
	interview.PhaseClosing:      "You are in the closing phase: ask one final wrap-up question, then thank the candidate.",
}

// SystemPrompt assembles the interviewer instructions for one session at its
// current phase.
func SystemPrompt(cfg interview.SessionConfig, phase interview.Phase) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are conducting a voice job interview for the position of %s", cfg.JobTitle)
	if cfg.Company != "" {
		fmt.Fprintf(&b, " at %s", cfg.Company)
	}
	b.WriteString(". ")
	if cfg.CandidateName != "" {
		fmt.Fprintf(&b, "The candidate's name is %s. ", cfg.CandidateName)
	}

	if traits, ok := personaTraits[cfg.Persona]; ok {
		b.WriteString(traits)
		b.WriteString(" ")
	}
	if cfg.JobDescription != "" {
		fmt.Fprintf(&b, "The job requirements are: %s ", cfg.JobDescription)
	}
	if cfg.CVText != "" {
		fmt.Fprintf(&b, "The candidate's CV reads: %s ", cfg.CVText)
	}
	if cfg.JobDescription != "" || cfg.CVText != "" {
		b.WriteString("Tailor your questions to the job requirements and the candidate's actual experience. ")
	}
	if lang, ok := languageInstructions[cfg.Language]; ok {
		b.WriteString(lang)
		b.WriteString(" ")
	}
	if guidance, ok := phaseGuidance[phase]; ok {
		b.WriteString(guidance)
		b.WriteString(" ")
	}

	b.WriteString("Your reply is spoken aloud: keep it to one or two sentences, ask exactly one question, and never use markdown, lists, or stage directions.")
	return b.String()
}

// analysisPrompt instructs the model to assess the finished interview as JSON.
const analysisPrompt = `Assess the interview transcript above. Respond with a single JSON object and nothing else, using exactly these fields:
{"overallScore": <integer 0-100>, "strengths": [<2-4 short strings>], "improvements": [<2-4 short strings>], "feedback": "<2-3 sentence summary addressed to the candidate>"}`

// BuildHistory converts the transcript into model messages, newest turns
// kept when the cap is exceeded.
func BuildHistory(turns []interview.Turn) []types.Message {
	if len(turns) > historyCap {
		turns = turns[len(turns)-historyCap:]
	}
	messages := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		role := types.RoleAssistant
		if t.Speaker == interview.SpeakerCandidate {
			role = types.RoleUser
		}
		messages = append(messages, types.Message{Role: role, Content: t.Text})
	}
	return messages
}
