package generate

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/MrWong99/intervox/internal/interview"
)

// Topic is a coarse classification of a candidate answer used to pick a
// relevant canned follow-up when the model is unreachable.
type Topic string

const (
	TopicExperience  Topic = "experience"
	TopicChallenge   Topic = "challenge"
	TopicTeam        Topic = "team"
	TopicAchievement Topic = "achievement"
	TopicGeneral     Topic = "general"
)

// topicKeywords maps answer vocabulary to topics. First match wins, in the
// order listed here.
var topicKeywords = []struct {
	topic Topic
	words []string
}{
	{TopicChallenge, []string{"challenge", "difficult", "problem", "obstacle", "struggle", "desafío", "difícil", "problema", "obstáculo"}},
	{TopicTeam, []string{"team", "colleague", "collaborat", "manager", "coworker", "equipo", "colega", "compañero", "jefe"}},
	{TopicAchievement, []string{"achieve", "accomplish", "proud", "success", "award", "logr", "éxito", "orgullo"}},
	{TopicExperience, []string{"worked", "job", "role", "position", "company", "project", "trabaj", "empresa", "puesto", "proyecto"}},
}

// DetectTopic classifies an answer for fallback question selection.
func DetectTopic(answer string) Topic {
	lower := strings.ToLower(answer)
	for _, tk := range topicKeywords {
		for _, w := range tk.words {
			if strings.Contains(lower, w) {
				return tk.topic
			}
		}
	}
	return TopicGeneral
}

// fallbackKey indexes the canned question pools.
type fallbackKey struct {
	topic    Topic
	persona  interview.Persona
	language string
}

// fallbackPools holds canned follow-ups keyed by topic, persona, and
// language. Pools are written so any entry works as a standalone question
// regardless of what was actually said.
var fallbackPools = map[fallbackKey][]string{
	// --- English, professional ---
	{TopicGeneral, interview.PersonaProfessional, "en"}: {
		"Thank you. Could you walk me through your most recent role and your main responsibilities?",
		"Understood. What would you say is the skill most relevant to this position?",
		"Noted. How do you typically prioritize when several tasks compete for your time?",
	},
	{TopicExperience, interview.PersonaProfessional, "en"}: {
		"Thank you for that context. Which part of that work maps most directly to this role?",
		"I see. What was the measurable outcome of that project?",
	},
	{TopicChallenge, interview.PersonaProfessional, "en"}: {
		"Understood. What specific steps did you take to resolve that situation?",
		"And looking back, what would you do differently if you faced it again?",
	},
	{TopicTeam, interview.PersonaProfessional, "en"}: {
		"How large was that team, and what was your specific role within it?",
		"How do you handle disagreements with colleagues on technical or strategic decisions?",
	},
	{TopicAchievement, interview.PersonaProfessional, "en"}: {
		"That sounds significant. How did you measure the impact of that result?",
		"What role did you personally play in making that happen?",
	},

	// --- English, friendly ---
	{TopicGeneral, interview.PersonaFriendly, "en"}: {
		"That's great, thanks for sharing! Can you tell me a bit about what a typical day looked like in your last role?",
		"Interesting! What kind of work energizes you the most?",
		"Nice! What made you interested in this position in the first place?",
	},
	{TopicExperience, interview.PersonaFriendly, "en"}: {
		"That sounds like valuable experience! What did you enjoy most about that work?",
		"Oh nice! Which project from that time are you most fond of?",
	},
	{TopicChallenge, interview.PersonaFriendly, "en"}: {
		"That sounds tough! How did you keep yourself motivated through it?",
		"Wow, that can't have been easy. What did you learn from the experience?",
	},
	{TopicTeam, interview.PersonaFriendly, "en"}: {
		"Sounds like a good group! What do you value most in the people you work with?",
		"Teamwork matters so much. How do you like to celebrate wins with your team?",
	},
	{TopicAchievement, interview.PersonaFriendly, "en"}: {
		"Congratulations, that's impressive! How did it feel when it all came together?",
		"That's wonderful! Who helped you along the way?",
	},

	// --- English, expert ---
	{TopicGeneral, interview.PersonaExpert, "en"}: {
		"Let's get specific. Give me one concrete example that backs up what you just said.",
		"That was fairly general. What evidence can you point to?",
		"Why should we pick you over a candidate with the same background?",
	},
	{TopicExperience, interview.PersonaExpert, "en"}: {
		"What exactly did you contribute there, as opposed to your team?",
		"Those responsibilities sound broad. Which one did you actually own end to end?",
	},
	{TopicChallenge, interview.PersonaExpert, "en"}: {
		"Was that really the hardest problem you've faced? What made it hard, precisely?",
		"Whose mistake caused that situation, and what was your part in it?",
	},
	{TopicTeam, interview.PersonaExpert, "en"}: {
		"Tell me about a time a teammate underperformed. What did you do about it?",
		"Have you ever been wrong in a team disagreement? What happened?",
	},
	{TopicAchievement, interview.PersonaExpert, "en"}: {
		"How much of that result was you, and how much was circumstance?",
		"Impressive if true. How would your manager at the time describe your contribution?",
	},

	// --- Spanish, professional ---
	{TopicGeneral, interview.PersonaProfessional, "es"}: {
		"Gracias. ¿Podría describirme su puesto más reciente y sus responsabilidades principales?",
		"Entendido. ¿Cuál diría que es la habilidad más relevante para este puesto?",
	},
	{TopicExperience, interview.PersonaProfessional, "es"}: {
		"Gracias por el contexto. ¿Qué parte de ese trabajo se relaciona más con este puesto?",
		"Ya veo. ¿Cuál fue el resultado medible de ese proyecto?",
	},
	{TopicChallenge, interview.PersonaProfessional, "es"}: {
		"Entendido. ¿Qué pasos concretos tomó para resolver esa situación?",
	},
	{TopicTeam, interview.PersonaProfessional, "es"}: {
		"¿De qué tamaño era ese equipo y cuál era su función específica?",
	},
	{TopicAchievement, interview.PersonaProfessional, "es"}: {
		"Suena significativo. ¿Cómo midió el impacto de ese resultado?",
	},

	// --- Spanish, friendly ---
	{TopicGeneral, interview.PersonaFriendly, "es"}: {
		"¡Genial, gracias por compartirlo! ¿Puede contarme cómo era un día típico en su último trabajo?",
		"¡Interesante! ¿Qué tipo de trabajo le motiva más?",
	},
	{TopicExperience, interview.PersonaFriendly, "es"}: {
		"¡Suena como una experiencia valiosa! ¿Qué fue lo que más disfrutó de ese trabajo?",
	},
	{TopicChallenge, interview.PersonaFriendly, "es"}: {
		"¡Qué difícil! ¿Cómo se mantuvo motivado durante ese tiempo?",
	},
	{TopicTeam, interview.PersonaFriendly, "es"}: {
		"¡Suena como un buen grupo! ¿Qué es lo que más valora en sus compañeros de trabajo?",
	},
	{TopicAchievement, interview.PersonaFriendly, "es"}: {
		"¡Felicidades, es impresionante! ¿Cómo se sintió cuando todo salió bien?",
	},

	// --- Spanish, expert ---
	{TopicGeneral, interview.PersonaExpert, "es"}: {
		"Seamos concretos. Deme un ejemplo específico que respalde lo que acaba de decir.",
		"Eso fue bastante general. ¿Qué evidencia puede señalar?",
	},
	{TopicExperience, interview.PersonaExpert, "es"}: {
		"¿Qué aportó usted exactamente, a diferencia de su equipo?",
	},
	{TopicChallenge, interview.PersonaExpert, "es"}: {
		"¿De verdad fue el problema más difícil que ha enfrentado? ¿Qué lo hizo difícil, exactamente?",
	},
	{TopicTeam, interview.PersonaExpert, "es"}: {
		"Cuénteme de una vez que un compañero no rindió. ¿Qué hizo al respecto?",
	},
	{TopicAchievement, interview.PersonaExpert, "es"}: {
		"¿Cuánto de ese resultado fue mérito suyo y cuánto fue circunstancia?",
	},
}

// greetings open the interview, keyed by persona and language. The %s
// placeholders are candidate name and job title.
var greetings = map[fallbackKey]string{
	{TopicGeneral, interview.PersonaProfessional, "en"}: "Good day, %s. Thank you for joining this interview for the %s position. To begin, please introduce yourself and summarize your professional background.",
	{TopicGeneral, interview.PersonaFriendly, "en"}:     "Hi %s, great to meet you! Thanks so much for taking the time to talk about the %s role today. To kick things off, tell me a little about yourself!",
	{TopicGeneral, interview.PersonaExpert, "en"}:       "Hello %s. We're here for the %s position. Let's not waste time: tell me, in one minute, why you're the right person for it.",
	{TopicGeneral, interview.PersonaProfessional, "es"}: "Buenos días, %s. Gracias por asistir a esta entrevista para el puesto de %s. Para comenzar, preséntese y resuma su trayectoria profesional.",
	{TopicGeneral, interview.PersonaFriendly, "es"}:     "¡Hola %s, un placer conocerle! Gracias por su tiempo para hablar del puesto de %s. Para empezar, ¡cuénteme un poco sobre usted!",
	{TopicGeneral, interview.PersonaExpert, "es"}:       "Hola, %s. Estamos aquí por el puesto de %s. Sin rodeos: dígame en un minuto por qué es la persona indicada.",
}

// closings end the interview, keyed by persona and language. The %s
// placeholder is the candidate name.
var closings = map[fallbackKey]string{
	{TopicGeneral, interview.PersonaProfessional, "en"}: "Thank you for your time today, %s. That concludes the interview. We will review your responses and follow up with the next steps.",
	{TopicGeneral, interview.PersonaFriendly, "en"}:     "That's a wrap, %s! Thanks so much for the great conversation — it was a pleasure. We'll be in touch soon!",
	{TopicGeneral, interview.PersonaExpert, "en"}:       "That concludes the interview, %s. You'll hear from us if your answers hold up against the other candidates.",
	{TopicGeneral, interview.PersonaProfessional, "es"}: "Gracias por su tiempo, %s. Con esto concluye la entrevista. Revisaremos sus respuestas y le informaremos de los siguientes pasos.",
	{TopicGeneral, interview.PersonaFriendly, "es"}:     "¡Hemos terminado, %s! Muchas gracias por la conversación, fue un placer. ¡Estaremos en contacto pronto!",
	{TopicGeneral, interview.PersonaExpert, "es"}:       "Con esto concluye la entrevista, %s. Tendrá noticias nuestras si sus respuestas se sostienen frente a los demás candidatos.",
}

// Fallback produces interviewer lines without a language model. All methods
// are deterministic given the same *rand.Rand sequence, which tests exploit.
type Fallback struct {
	rng *rand.Rand
}

// NewFallback creates a fallback generator. A nil rng uses a time-seeded one.
func NewFallback(rng *rand.Rand) *Fallback {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Fallback{rng: rng}
}

// normalizeKey coerces unknown personas and languages to supported values so
// every lookup lands in a populated pool.
func normalizeKey(topic Topic, cfg interview.SessionConfig) fallbackKey {
	persona := cfg.Persona
	if !persona.IsValid() {
		persona = interview.PersonaProfessional
	}
	language := cfg.Language
	if language != "es" {
		language = "en"
	}
	return fallbackKey{topic: topic, persona: persona, language: language}
}

// Question picks a canned follow-up matched to the candidate's last answer.
func (f *Fallback) Question(cfg interview.SessionConfig, lastAnswer string) string {
	key := normalizeKey(DetectTopic(lastAnswer), cfg)
	pool := fallbackPools[key]
	if len(pool) == 0 {
		key.topic = TopicGeneral
		pool = fallbackPools[key]
	}
	return pool[f.rng.Intn(len(pool))]
}

// Greeting returns the opening line for a session.
func (f *Fallback) Greeting(cfg interview.SessionConfig) string {
	key := normalizeKey(TopicGeneral, cfg)
	name := cfg.CandidateName
	if name == "" {
		if key.language == "es" {
			name = "candidato"
		} else {
			name = "there"
		}
	}
	return fmt.Sprintf(greetings[key], name, cfg.JobTitle)
}

// Closing returns the final line spoken before the session ends.
func (f *Fallback) Closing(cfg interview.SessionConfig) string {
	key := normalizeKey(TopicGeneral, cfg)
	name := cfg.CandidateName
	if name == "" {
		if key.language == "es" {
			name = "candidato"
		} else {
			name = "there"
		}
	}
	return fmt.Sprintf(closings[key], name)
}

// Analysis produces the local stand-in assessment when the model's analysis
// never arrives: a modest score that grows with participation.
func (f *Fallback) Analysis(questionsAnswered int, language string) interview.Analysis {
	score := 75 + 2*questionsAnswered
	if score > 90 {
		score = 90
	}
	if language == "es" {
		return interview.Analysis{
			OverallScore: score,
			Strengths:    []string{"Completó la entrevista", "Respondió a todas las preguntas planteadas"},
			Improvements: []string{"Amplíe sus respuestas con ejemplos concretos", "Cuantifique los resultados cuando sea posible"},
			Feedback:     "Gracias por completar la entrevista. Siga practicando respuestas con ejemplos específicos y resultados medibles.",
		}
	}
	return interview.Analysis{
		OverallScore: score,
		Strengths:    []string{"Completed the interview", "Engaged with every question asked"},
		Improvements: []string{"Expand answers with concrete examples", "Quantify results where possible"},
		Feedback:     "Thank you for completing the interview. Keep practicing answers built around specific examples and measurable outcomes.",
	}
}
