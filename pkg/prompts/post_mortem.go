package prompts

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/insights"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// ExperienceTier adapts prompt tone to how many projects a user has buried.
type ExperienceTier string

const (
	TierNewcomer    ExperienceTier = "newcomer"
	TierEarly       ExperienceTier = "early"
	TierExperienced ExperienceTier = "experienced"
	TierVeteran     ExperienceTier = "veteran"
)

// TierFor returns the experience tier for a user with projectCount projects,
// counting the one being analyzed.
func TierFor(projectCount int) ExperienceTier {
	switch {
	case projectCount <= 1:
		return TierNewcomer
	case projectCount < 3:
		return TierEarly
	case projectCount < 10:
		return TierExperienced
	default:
		return TierVeteran
	}
}

// HistoryEntry is another project of the same user, shown for context.
type HistoryEntry struct {
	Name           string
	DeathCause     models.DeathCause
	TechStack      []string
	WhatWentWrong  string
	LessonsLearned string
}

// PatternContext is an active pattern as the prompt presents it.
type PatternContext struct {
	Name       models.PatternName
	Type       models.PatternType
	Frequency  int
	Confidence float64
	Evidence   models.Evidence
}

// PostMortemContext carries everything the post-mortem prompt draws on.
type PostMortemContext struct {
	ProjectName    string
	Description    string
	DeathCause     models.DeathCause
	TechStack      []string
	WhatProblem    string
	WhatWentWrong  string
	LessonsLearned string

	History  []HistoryEntry
	Patterns []PatternContext
	Velocity *models.LearningVelocity

	// ProjectCount is the user's total number of projects including this one.
	ProjectCount int
}

const maxEvidenceChars = 100

// BuildPostMortemPrompt creates the prompt for analyzing a single post-mortem.
// The response is expected to contain the section markers in insights.Sections.
func BuildPostMortemPrompt(c PostMortemContext) string {
	tier := TierFor(c.ProjectCount)
	isFirst := tier == TierNewcomer

	var prompt strings.Builder

	prompt.WriteString("You are coaching a developer who is reflecting on an abandoned side project. ")
	prompt.WriteString("You know this developer's history and recurring patterns.\n\n")

	prompt.WriteString(fmt.Sprintf("## Requirements for a %s developer\n\n", strings.ToUpper(string(tier))))
	prompt.WriteString("1. Reference their specific patterns and historical data.\n")
	switch {
	case isFirst:
		prompt.WriteString("2. This is their FIRST buried project. Be encouraging but insightful.\n")
	case c.ProjectCount < 5:
		prompt.WriteString("2. They are still forming patterns. Focus on emerging trends.\n")
	default:
		prompt.WriteString("2. They are experienced. Focus on breaking long-established patterns.\n")
	}
	prompt.WriteString("3. Quote their exact words in double quotes and connect them to their patterns.\n")
	prompt.WriteString("4. Acknowledge their growth trajectory.\n\n")

	prompt.WriteString("## Project\n\n")
	prompt.WriteString(fmt.Sprintf("Name: %q\n", c.ProjectName))
	prompt.WriteString(fmt.Sprintf("Description: %s\n", orDefault(c.Description, "No description provided")))
	prompt.WriteString(fmt.Sprintf("Death cause: %s\n", c.DeathCause.Humanize()))
	prompt.WriteString(fmt.Sprintf("Tech stack: %s\n", orDefault(strings.Join(c.TechStack, ", "), "Not specified")))
	prompt.WriteString(fmt.Sprintf("Project #%d in their graveyard\n\n", max(1, c.ProjectCount)))

	prompt.WriteString("## Their post-mortem\n\n")
	prompt.WriteString(fmt.Sprintf("Problem statement: %q\n\n", orDefault(c.WhatProblem, "Not provided")))
	prompt.WriteString(fmt.Sprintf("What went wrong: %q\n\n", orDefault(c.WhatWentWrong, "Not provided")))
	prompt.WriteString(fmt.Sprintf("Lessons learned: %q\n\n", orDefault(c.LessonsLearned, "Not provided")))

	if len(c.Patterns) > 0 {
		prompt.WriteString("## Their detected patterns\n\n")
		for _, p := range c.Patterns {
			prompt.WriteString(fmt.Sprintf("- %s (%d%% confidence, detected %d times)\n",
				strings.ToUpper(strings.ReplaceAll(string(p.Name), "_", " ")),
				int(math.Round(p.Confidence*100)), p.Frequency))
			prompt.WriteString(fmt.Sprintf("  Pattern: %s\n", p.Name.Description()))
			if summary := summarizeEvidence(p.Evidence); summary != "" {
				prompt.WriteString(fmt.Sprintf("  Evidence: %s\n", summary))
			}
		}
		prompt.WriteString("\n")
	}

	if c.Velocity != nil {
		prompt.WriteString("## Their learning velocity\n\n")
		prompt.WriteString(fmt.Sprintf("- Project lifespan trend: %s\n", c.Velocity.LifespanTrend))
		prompt.WriteString(fmt.Sprintf("- Scope management score: %d/100\n", c.Velocity.ScopeManagementScore))
		prompt.WriteString(fmt.Sprintf("- Technology consistency: %d/100\n", c.Velocity.TechnologyConsistency))
		prompt.WriteString(fmt.Sprintf("- Completion rate trend: %s\n\n", c.Velocity.CompletionRateTrend))
	}

	if len(c.History) > 0 {
		prompt.WriteString("## Previous projects\n\n")
		for _, h := range c.History {
			prompt.WriteString(fmt.Sprintf("- %q (abandoned due to: %s)\n", h.Name, h.DeathCause.Humanize()))
			if h.WhatWentWrong != "" {
				prompt.WriteString(fmt.Sprintf("  What went wrong: %q\n", h.WhatWentWrong))
			}
			if h.LessonsLearned != "" {
				prompt.WriteString(fmt.Sprintf("  Lessons learned: %q\n", h.LessonsLearned))
			}
			if len(h.TechStack) > 0 {
				prompt.WriteString(fmt.Sprintf("  Tech: %s\n", strings.Join(h.TechStack, ", ")))
			}
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Task\n\n")
	switch {
	case isFirst:
		prompt.WriteString("This is their first buried project. Focus on early pattern recognition and good habits.\n\n")
	case len(c.Patterns) > 0:
		names := make([]string, len(c.Patterns))
		for i, p := range c.Patterns {
			names[i] = string(p.Name)
		}
		prompt.WriteString(fmt.Sprintf("Given their established patterns (%s), help them break or leverage these patterns.\n\n",
			strings.Join(names, ", ")))
	default:
		prompt.WriteString(fmt.Sprintf("With %d projects buried, look for emerging patterns in their behavior.\n\n", c.ProjectCount))
	}

	prompt.WriteString("Provide exactly 3-4 insights. Each one must:\n")
	prompt.WriteString("- Be specific to their detected patterns and history\n")
	prompt.WriteString("- Quote their exact words in double quotes\n")
	prompt.WriteString(fmt.Sprintf("- Fit a %s developer\n\n", tier))

	prompt.WriteString("Use exactly these section headers, each on its own line, in this order:\n\n")
	prompt.WriteString(insights.Sections[0].Marker + "\n")
	prompt.WriteString("Historical Pattern: [their relevant pattern]\n")
	prompt.WriteString("Current Evidence: \"their exact phrase from this project\"\n")
	prompt.WriteString("Pattern Evolution: [how this project fits or breaks the pattern]\n\n")

	prompt.WriteString(insights.Sections[1].Marker + "\n")
	prompt.WriteString("Your Pattern: [pattern name with frequency]\n")
	prompt.WriteString("What You Said: \"their exact words\"\n")
	prompt.WriteString("Pattern-Breaking Action: [specific advice based on their history]\n\n")

	prompt.WriteString(insights.Sections[2].Marker + "\n")
	prompt.WriteString("Your Statement: \"exact phrase\"\n")
	prompt.WriteString("Pattern-Aware Question: [a question that exposes the deeper pattern]\n\n")

	prompt.WriteString(insights.Sections[3].Marker + "\n")
	prompt.WriteString("Based On Your History: [pattern + quote]\n")
	prompt.WriteString("Action Plan:\n1. [step against the pattern]\n2. [step building a better habit]\n3. [step to track progress]\n\n")

	prompt.WriteString("Every section must reference both their current words and their history. ")
	prompt.WriteString("Avoid generic advice that would fit any developer.\n")

	return prompt.String()
}

// PostMortemSystemMessage returns the system message for post-mortem analysis.
func PostMortemSystemMessage() string {
	return `You are an expert developer coach who helps people learn from abandoned projects. You are direct, specific and always ground what you say in the developer's own words.`
}

// summarizeEvidence renders an evidence bag as a short single line.
func summarizeEvidence(e models.Evidence) string {
	if len(e) == 0 {
		return ""
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	s := strings.NewReplacer("{", "", "}", "").Replace(string(raw))
	if utf8.RuneCountInString(s) > maxEvidenceChars {
		s = string([]rune(s)[:maxEvidenceChars]) + "..."
	}
	return s
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
