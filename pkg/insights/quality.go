package insights

import (
	"math"
	"regexp"
	"strings"
)

// MinContentLength is the trimmed length a section must exceed.
const MinContentLength = 20

// MinConfidence is the score a section must exceed to be kept.
const MinConfidence = 0.3

// Rejection reasons.
const (
	ReasonTooShort      = "too_short"
	ReasonGenericPhrase = "generic_phrase"
	ReasonVague         = "vague_without_quote"
	ReasonLowConfidence = "low_confidence"
)

// GenericPhrases are stock coaching lines that say nothing about the user.
var GenericPhrases = []string{
	"consider breaking down",
	"start small and iterate",
	"focus on the mvp",
	"developers often",
	"common pattern",
	"try to be more specific",
	"consider your target audience",
	"make sure to validate",
	"this is a common issue",
	"many projects fail because",
}

var (
	userReference  = regexp.MustCompile(`(?i)\byou (said|mentioned|wrote|described)\b`)
	causalLanguage = regexp.MustCompile(`(?i)\b(because|since|given that)\b`)
	generalisation = regexp.MustCompile(`(?i)\b(many|most)\b`)
)

// Verdict is the outcome of running content through the quality gate.
type Verdict struct {
	Accepted bool
	Reason   string
	Score    float64
}

// Evaluate applies the quality gate and confidence scoring to one section.
func Evaluate(content string) Verdict {
	trimmed := strings.TrimSpace(content)
	score := Score(trimmed)

	switch {
	case len(trimmed) <= MinContentLength:
		return Verdict{Reason: ReasonTooShort, Score: score}
	case hasGenericPhrase(trimmed):
		return Verdict{Reason: ReasonGenericPhrase, Score: score}
	case !hasQuote(trimmed) && isVague(trimmed):
		return Verdict{Reason: ReasonVague, Score: score}
	case score <= MinConfidence:
		return Verdict{Reason: ReasonLowConfidence, Score: score}
	}
	return Verdict{Accepted: true, Score: score}
}

// Score estimates how specific a section is. The result is clamped to [0.1, 1.0].
func Score(content string) float64 {
	lower := strings.ToLower(content)
	mentionsYou := strings.Contains(lower, "you")

	score := 0.4
	if hasQuote(content) {
		score += 0.3
	}
	if userReference.MatchString(content) {
		score += 0.2
	}
	if len(content) > 150 {
		score += 0.1
	}
	if strings.Contains(lower, "specifically") {
		score += 0.1
	}
	if causalLanguage.MatchString(content) {
		score += 0.1
	}

	if strings.Contains(lower, "consider") && !mentionsYou {
		score -= 0.2
	}
	if strings.Contains(lower, "developers") && !mentionsYou {
		score -= 0.15
	}
	if generalisation.MatchString(content) {
		score -= 0.1
	}

	score = math.Max(0.1, math.Min(1.0, score))
	return math.Round(score*100) / 100
}

func hasGenericPhrase(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range GenericPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func hasQuote(content string) bool {
	return strings.ContainsAny(content, "\"“”")
}

// isVague reports hedging advice that does not point back at the user's own words.
func isVague(content string) bool {
	lower := strings.ToLower(content)
	hedging := strings.Contains(lower, "consider") || strings.Contains(lower, "might want to")
	return hedging && !userReference.MatchString(content)
}
