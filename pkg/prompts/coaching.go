package prompts

import (
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// CoachingResponse is the JSON object the coaching prompt asks for.
type CoachingResponse struct {
	Insights []CoachingInsight `json:"insights"`
}

// CoachingInsight is one coaching statement from the second phase.
// RelatedPatterns holds pattern names from the prompt.
type CoachingInsight struct {
	InsightType     string         `json:"insight_type"`
	InsightText     string         `json:"insight_text"`
	Confidence      jsonutil.Float `json:"confidence"`
	RelatedPatterns []string       `json:"related_patterns"`
}

// CoachingContext carries the persisted patterns and recent projects the
// coaching prompt is built from.
type CoachingContext struct {
	Patterns       []PatternContext
	RecentProjects []ProjectSummary
	Velocity       *models.LearningVelocity
	ProjectCount   int
}

// BuildCoachingPrompt creates the second-phase prompt, which turns detected
// patterns into coaching insights.
func BuildCoachingPrompt(c CoachingContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Personalized Coaching\n\n")
	prompt.WriteString(fmt.Sprintf("A developer (%s, %d projects buried) has these detected behavioral patterns. ",
		TierFor(c.ProjectCount), c.ProjectCount))
	prompt.WriteString("Write coaching insights that help them finish their next project.\n\n")

	prompt.WriteString("## Detected Patterns\n\n")
	for _, p := range c.Patterns {
		prompt.WriteString(fmt.Sprintf("### %s (%s)\n", p.Name, p.Type))
		prompt.WriteString(fmt.Sprintf("- Confidence: %d%%\n", int(math.Round(p.Confidence*100))))
		prompt.WriteString(fmt.Sprintf("- Seen %d times\n", p.Frequency))
		prompt.WriteString(fmt.Sprintf("- Meaning: %s\n", p.Name.Description()))
		if summary := summarizeEvidence(p.Evidence); summary != "" {
			prompt.WriteString(fmt.Sprintf("- Evidence: %s\n", summary))
		}
		prompt.WriteString("\n")
	}

	if len(c.RecentProjects) > 0 {
		prompt.WriteString("## Recent Projects\n\n")
		for _, p := range c.RecentProjects {
			tech := "no stack recorded"
			if len(p.TechStack) > 0 {
				tech = strings.Join(p.TechStack, ", ")
			}
			prompt.WriteString(fmt.Sprintf("- %q: %d days, %s, %s\n", p.Name, p.LifespanDays, p.DeathCause.Humanize(), tech))
		}
		prompt.WriteString("\n")
	}

	if c.Velocity != nil {
		prompt.WriteString("## Learning Velocity\n\n")
		prompt.WriteString(fmt.Sprintf("- Lifespan trend: %s\n", c.Velocity.LifespanTrend))
		prompt.WriteString(fmt.Sprintf("- Scope management: %d/100\n", c.Velocity.ScopeManagementScore))
		prompt.WriteString(fmt.Sprintf("- Technology consistency: %d/100\n\n", c.Velocity.TechnologyConsistency))
	}

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Write 2-4 insights. Each must name the project or pattern it is about.\n")
	prompt.WriteString("2. Quote project names in double quotes.\n")
	prompt.WriteString("3. insight_type is one of: warning, recommendation, observation, prediction.\n")
	prompt.WriteString("4. related_patterns lists pattern names exactly as given above.\n")
	prompt.WriteString("5. Avoid near-duplicates: no two insights may make the same point.\n")
	prompt.WriteString("6. No generic advice such as \"start small\" or \"break down the scope\".\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("Respond with a single JSON object and nothing else:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "insights": [
    {
      "insight_type": "warning",
      "insight_text": "\"Recipe App\" and \"Budget Tracker\" both started on a Saturday and died by Monday, because the weekend ended before the first release.",
      "confidence": 0.8,
      "related_patterns": ["weekend_warrior"]
    }
  ]
}
`)
	prompt.WriteString("```\n")

	return prompt.String()
}

// CoachingSystemMessage returns the system message for the coaching phase.
func CoachingSystemMessage() string {
	return `You are a pragmatic developer coach. You give specific, evidence-based advice and respond only with valid JSON.`
}
