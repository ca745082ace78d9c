// Package insights turns free-text completion output into typed, quality-gated insight sections.
package insights

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// Section pairs an insight type with the header marker that introduces it.
type Section struct {
	Type   models.AIInsightType
	Marker string
}

// Sections is the closed, ordered set of markers a post-mortem analysis uses.
var Sections = []Section{
	{Type: models.AIInsightPatternRecognition, Marker: "**PATTERN_RECOGNITION:**"},
	{Type: models.AIInsightCoaching, Marker: "**COACHING:**"},
	{Type: models.AIInsightQuestions, Marker: "**QUESTIONS:**"},
	{Type: models.AIInsightStrategies, Marker: "**STRATEGIES:**"},
}

// Extracted is the raw content found under one marker.
// Found is false when the marker does not occur in the response.
type Extracted struct {
	Type    models.AIInsightType
	Content string
	Found   bool
}

// ParsedInsight is a section that passed the quality gate.
type ParsedInsight struct {
	Type       models.AIInsightType
	Content    string
	Confidence float64
}

// Rejection records a section dropped by the quality gate.
type Rejection struct {
	Type   models.AIInsightType
	Reason string
	Score  float64
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// ExtractSections returns one entry per marker, in marker order. Each section
// starts after the first occurrence of its marker and ends where the nearest
// other marker begins, or at the end of the response.
func ExtractSections(response string) []Extracted {
	out := make([]Extracted, 0, len(Sections))
	for _, s := range Sections {
		start := strings.Index(response, s.Marker)
		if start < 0 {
			out = append(out, Extracted{Type: s.Type})
			continue
		}
		contentStart := start + len(s.Marker)

		end := len(response)
		for _, other := range Sections {
			if other.Marker == s.Marker {
				continue
			}
			if idx := strings.Index(response[contentStart:], other.Marker); idx >= 0 && contentStart+idx < end {
				end = contentStart + idx
			}
		}

		out = append(out, Extracted{
			Type:    s.Type,
			Content: cleanContent(response[contentStart:end]),
			Found:   true,
		})
	}
	return out
}

func cleanContent(s string) string {
	s = strings.TrimSpace(s)
	s = blankLines.ReplaceAllString(s, "\n")
	s = strings.Trim(s, "[]")
	return strings.TrimSpace(s)
}

// Parse extracts every section and runs it through the quality gate.
// Absent sections are skipped silently, gated sections are returned as rejections.
func Parse(response string) ([]ParsedInsight, []Rejection) {
	var kept []ParsedInsight
	var rejected []Rejection
	for _, section := range ExtractSections(response) {
		if !section.Found {
			continue
		}
		verdict := Evaluate(section.Content)
		if !verdict.Accepted {
			rejected = append(rejected, Rejection{Type: section.Type, Reason: verdict.Reason, Score: verdict.Score})
			continue
		}
		kept = append(kept, ParsedInsight{
			Type:       section.Type,
			Content:    section.Content,
			Confidence: verdict.Score,
		})
	}
	return kept, rejected
}
