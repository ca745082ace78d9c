package prompts

import (
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// ProjectSummary is one project of the user's history as the JSON-shaped
// prompts present it.
type ProjectSummary struct {
	Name          string
	CreatedAt     string
	Weekday       string
	LifespanDays  int
	DeathCause    models.DeathCause
	TechStack     []string
	RevivalStatus models.RevivalStatus

	// Metadata is optional. Estimated metadata is marked as such.
	Metadata *models.ProjectMetadata
}

// SummarizeProject converts a project and its metadata into a ProjectSummary.
// Dates are rendered in UTC, the same calendar the detector uses.
func SummarizeProject(p *models.Project, md *models.ProjectMetadata) ProjectSummary {
	created := p.CreatedAt.UTC()
	return ProjectSummary{
		Name:          p.Name,
		CreatedAt:     created.Format("2006-01-02"),
		Weekday:       created.Weekday().String(),
		LifespanDays:  int(math.Round(p.LifespanDays())),
		DeathCause:    p.DeathCause,
		TechStack:     p.TechStack,
		RevivalStatus: p.RevivalStatus,
		Metadata:      md,
	}
}

// DetectionResponse is the JSON object the detection prompt asks for.
type DetectionResponse struct {
	Patterns []DetectedPattern `json:"patterns"`
}

// DetectedPattern is a model-named pattern from the detection phase.
type DetectedPattern struct {
	PatternName string         `json:"pattern_name"`
	Confidence  jsonutil.Float `json:"confidence"`
	Evidence    []string       `json:"evidence"`
	Description string         `json:"description"`
}

// BuildPatternDetectionPrompt creates the first-phase prompt, which asks the
// model to name behavioral patterns from raw project history. Patterns in
// alreadyDetected were found by the heuristics and must not be repeated.
func BuildPatternDetectionPrompt(projects []ProjectSummary, alreadyDetected []models.PatternName) string {
	var prompt strings.Builder

	prompt.WriteString("# Behavioral Pattern Detection\n\n")
	prompt.WriteString(fmt.Sprintf("Analyze the following %d abandoned side projects from one developer ", len(projects)))
	prompt.WriteString("and identify recurring behavioral patterns across them.\n\n")

	prompt.WriteString("## Project History (oldest first)\n\n")
	for i, p := range projects {
		prompt.WriteString(fmt.Sprintf("### %d. %s\n", i+1, p.Name))
		prompt.WriteString(fmt.Sprintf("- Started: %s (%s)\n", p.CreatedAt, p.Weekday))
		prompt.WriteString(fmt.Sprintf("- Lifespan: %d days\n", p.LifespanDays))
		prompt.WriteString(fmt.Sprintf("- Death cause: %s\n", p.DeathCause.Humanize()))
		if len(p.TechStack) > 0 {
			prompt.WriteString(fmt.Sprintf("- Tech stack: %s\n", strings.Join(p.TechStack, ", ")))
		}
		if p.RevivalStatus != "" && p.RevivalStatus != models.RevivalStatusBuried {
			prompt.WriteString(fmt.Sprintf("- Revival status: %s\n", p.RevivalStatus))
		}
		if md := p.Metadata; md != nil {
			label := ""
			if md.IsEstimated() {
				label = " (estimated)"
			}
			prompt.WriteString(fmt.Sprintf("- Activity%s: %d active days, ~%d lines, %d libraries, %d files, first commit %s\n",
				label, md.TotalDaysActive, md.EstimatedLinesOfCode, md.LibrariesCount, md.FilesCount, md.FirstCommitType))
		}
		prompt.WriteString("\n")
	}

	if len(alreadyDetected) > 0 {
		prompt.WriteString("## Already Detected\n\n")
		prompt.WriteString("These patterns were already found. Do NOT report them again:\n")
		for _, name := range alreadyDetected {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", name, name.Description()))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Only report a pattern supported by at least 2 projects.\n")
	prompt.WriteString("2. Use short snake_case pattern names.\n")
	prompt.WriteString("3. Evidence entries must cite specific projects by name.\n")
	prompt.WriteString("4. Confidence is between 0.0 and 1.0. Omit anything below 0.6.\n")
	prompt.WriteString("5. Avoid near-duplicates: if two candidate patterns describe the same behavior, report only the stronger one.\n")
	prompt.WriteString("6. Return an empty patterns array if nothing stands out.\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("Respond with a single JSON object and nothing else:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "patterns": [
    {
      "pattern_name": "deadline_drifter",
      "confidence": 0.75,
      "evidence": ["\"Recipe App\" and \"Budget Tracker\" both died right after a self-imposed deadline passed"],
      "description": "Abandons projects once a self-imposed deadline slips"
    }
  ]
}
`)
	prompt.WriteString("```\n")

	return prompt.String()
}

// PatternDetectionSystemMessage returns the system message for the detection phase.
func PatternDetectionSystemMessage() string {
	return `You are a behavioral analyst who studies how developers start and abandon side projects. You respond only with valid JSON.`
}
