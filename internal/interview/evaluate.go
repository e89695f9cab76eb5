package interview

import (
	"regexp"
	"strings"
)

// exampleMarkers matches phrasing that signals a concrete example or
// situation rather than a generality.
var exampleMarkers = regexp.MustCompile(`(?i)(example|instance|specifically|particular|when|during|project|experience|result|achieved|improved|increased|decreased|managed|led|developed|created|implemented)`)

// quantifiedMarkers matches numbers with units that signal a measurable
// outcome: percentages, or counts of time, people, and work.
var quantifiedMarkers = regexp.MustCompile(`(?i)(\d+%|\d+ (percent|million|thousand|years?|months?|weeks?|days?|hours?|people|team|members|customers|clients|users|projects?))`)

// Quality thresholds in words.
const (
	excellentMinWords = 50
	goodMinWords      = 30
)

// Evaluate grades a candidate answer by substance:
//
//   - excellent: at least 50 words, with both a concrete example and a
//     quantified outcome
//   - good: at least 30 words, with either of the two
//   - needs improvement: everything else
//
// The function is pure and depends only on the answer text.
func Evaluate(answer string) QualityTier {
	words := len(strings.Fields(answer))
	hasExample := exampleMarkers.MatchString(answer)
	hasNumbers := quantifiedMarkers.MatchString(answer)

	switch {
	case words >= excellentMinWords && hasExample && hasNumbers:
		return QualityExcellent
	case words >= goodMinWords && (hasExample || hasNumbers):
		return QualityGood
	default:
		return QualityNeedsImprovement
	}
}
