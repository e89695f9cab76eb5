// Package voicecmd detects spoken control commands in recognised transcripts.
//
// Speech recognition mangles command phrases often enough that exact string
// matching misses real commands ("finish the interview" heard as "finnish the
// interview"). Detection therefore runs in two passes: a literal substring
// check first, then a phonetic pass that compares each transcript window
// against the command phrase by Double Metaphone encoding and Jaro-Winkler
// similarity.
package voicecmd

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// jaroWinklerThreshold is the minimum similarity for a fuzzy word match.
const jaroWinklerThreshold = 0.88

// finishPhrases are the command phrases that end an interview, per language.
var finishPhrases = map[string][]string{
	"en": {
		"finish the interview",
		"finish interview",
		"end the interview",
		"end interview",
		"stop the interview",
	},
	"es": {
		"terminar la entrevista",
		"finalizar la entrevista",
		"terminar entrevista",
		"parar la entrevista",
	},
}

// IsFinishCommand reports whether the transcript contains a spoken request
// to end the interview, in the given language ("en" or "es"; unknown
// languages fall back to English).
func IsFinishCommand(transcript, language string) bool {
	phrases, ok := finishPhrases[language]
	if !ok {
		phrases = finishPhrases["en"]
	}

	normalized := normalize(transcript)
	if normalized == "" {
		return false
	}

	for _, phrase := range phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}

	// Phonetic pass: slide a window of the phrase's word count over the
	// transcript and compare word by word.
	words := strings.Fields(normalized)
	for _, phrase := range phrases {
		phraseWords := strings.Fields(phrase)
		if matchesPhonetic(words, phraseWords) {
			return true
		}
	}
	return false
}

func matchesPhonetic(words, phrase []string) bool {
	if len(words) < len(phrase) {
		return false
	}
	for start := 0; start+len(phrase) <= len(words); start++ {
		all := true
		for i, pw := range phrase {
			if !wordsSimilar(words[start+i], pw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// wordsSimilar reports whether two words sound alike: identical Double
// Metaphone encodings, or a high Jaro-Winkler similarity as backstop for
// short function words the metaphone collapses.
func wordsSimilar(a, b string) bool {
	if a == b {
		return true
	}
	aPrimary, aSecondary := matchr.DoubleMetaphone(a)
	bPrimary, bSecondary := matchr.DoubleMetaphone(b)
	if aPrimary != "" && (aPrimary == bPrimary || aPrimary == bSecondary) {
		return true
	}
	if aSecondary != "" && (aSecondary == bPrimary || aSecondary == bSecondary) {
		return true
	}
	return matchr.JaroWinkler(a, b, true) >= jaroWinklerThreshold
}

func normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == 'á':
			b.WriteRune('a')
		case r == 'é':
			b.WriteRune('e')
		case r == 'í':
			b.WriteRune('i')
		case r == 'ó':
			b.WriteRune('o')
		case r == 'ú', r == 'ü':
			b.WriteRune('u')
		case r == 'ñ':
			b.WriteRune('n')
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
