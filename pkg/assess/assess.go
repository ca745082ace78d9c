// Package assess scores recorded completion conversations using only
// deterministic checks. It reports how well the model followed the response
// contract of each pipeline phase, not whether the pipeline code is correct.
package assess

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/insights"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/prompts"
)

// Category weights (must sum to 100).
const (
	// StructureWeight covers parseability and presence of required fields.
	StructureWeight = 50
	// ValueWeight covers ranges, enum values and insight quality.
	ValueWeight = 30
	// ErrorRateWeight covers the share of calls that returned at all.
	ErrorRateWeight = 20
)

// maxIssues bounds the issue list in a report.
const maxIssues = 20

// CategoryScore is the result of one check category.
type CategoryScore struct {
	Score   int `json:"score"`
	Checked int `json:"checked"`
	Passed  int `json:"passed"`
}

// TokenMetrics aggregates token usage and latency over a phase.
type TokenMetrics struct {
	TotalPromptTokens     int     `json:"total_prompt_tokens"`
	TotalCompletionTokens int     `json:"total_completion_tokens"`
	AvgTokensPerCall      float64 `json:"avg_tokens_per_call"`
	MaxTokens             int     `json:"max_tokens"`
	MaxTokensConvID       string  `json:"max_tokens_conv_id,omitempty"`
	AvgDurationMs         float64 `json:"avg_duration_ms"`
}

// Report is the assessment of one phase.
type Report struct {
	Phase         string        `json:"phase"`
	Conversations int           `json:"conversations"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	TimedOut      int           `json:"timed_out"`
	Structure     CategoryScore `json:"structure"`
	Values        CategoryScore `json:"values"`
	ErrorRate     CategoryScore `json:"error_rate"`
	Tokens        TokenMetrics  `json:"tokens"`
	FinalScore    int           `json:"final_score"`
	Summary       string        `json:"summary"`
	Issues        []string      `json:"issues"`
}

// Phase returns the pipeline phase a conversation was recorded under.
func Phase(conv *models.LLMConversation) string {
	if p, ok := conv.Context["phase"].(string); ok && p != "" {
		return p
	}
	return "unknown"
}

// All groups conversations by phase and assesses each group. Reports are
// ordered by phase name.
func All(convs []*models.LLMConversation) []*Report {
	byPhase := make(map[string][]*models.LLMConversation)
	for _, c := range convs {
		byPhase[Phase(c)] = append(byPhase[Phase(c)], c)
	}

	phases := make([]string, 0, len(byPhase))
	for p := range byPhase {
		phases = append(phases, p)
	}
	sort.Strings(phases)

	reports := make([]*Report, 0, len(phases))
	for _, p := range phases {
		reports = append(reports, Assess(p, byPhase[p]))
	}
	return reports
}

// Assess scores conversations that all belong to phase.
func Assess(phase string, convs []*models.LLMConversation) *Report {
	r := &Report{Phase: phase, Conversations: len(convs), Issues: []string{}}

	var totalTokens, totalDuration int
	for _, c := range convs {
		totalDuration += c.DurationMs
		if tokens := callTokens(c); tokens > 0 {
			totalTokens += tokens
			if tokens > r.Tokens.MaxTokens {
				r.Tokens.MaxTokens = tokens
				r.Tokens.MaxTokensConvID = c.ID.String()
			}
		}
		if c.PromptTokens != nil {
			r.Tokens.TotalPromptTokens += *c.PromptTokens
		}
		if c.CompletionTokens != nil {
			r.Tokens.TotalCompletionTokens += *c.CompletionTokens
		}

		switch c.Status {
		case models.LLMConversationStatusSuccess:
			r.Succeeded++
		case models.LLMConversationStatusTimeout:
			r.TimedOut++
			r.addIssue(c, "timed out")
			continue
		default:
			r.Failed++
			r.addIssue(c, "call failed")
			continue
		}

		r.checkResponse(c)
	}

	if len(convs) > 0 {
		r.Tokens.AvgTokensPerCall = round1(float64(totalTokens) / float64(len(convs)))
		r.Tokens.AvgDurationMs = round1(float64(totalDuration) / float64(len(convs)))
	}

	r.ErrorRate = CategoryScore{Checked: len(convs), Passed: r.Succeeded}
	r.Structure.Score = percent(r.Structure.Passed, r.Structure.Checked)
	r.Values.Score = percent(r.Values.Passed, r.Values.Checked)
	r.ErrorRate.Score = percent(r.ErrorRate.Passed, r.ErrorRate.Checked)

	r.FinalScore = (r.Structure.Score*StructureWeight +
		r.Values.Score*ValueWeight +
		r.ErrorRate.Score*ErrorRateWeight) / 100
	r.Summary = r.summarize()
	return r
}

func (r *Report) checkResponse(c *models.LLMConversation) {
	switch r.Phase {
	case llm.PhaseDetection:
		r.Structure.Checked++
		resp, err := llm.ParseJSONResponse[prompts.DetectionResponse](c.ResponseContent)
		if err != nil {
			r.addIssue(c, "unparseable detection JSON")
			return
		}
		r.Structure.Passed++
		for i, p := range resp.Patterns {
			r.checkValue(c, fmt.Sprintf("pattern %d", i), detectedPatternProblem(p))
		}

	case llm.PhaseCoaching:
		r.Structure.Checked++
		resp, err := llm.ParseJSONResponse[prompts.CoachingResponse](c.ResponseContent)
		if err != nil {
			r.addIssue(c, "unparseable coaching JSON")
			return
		}
		if len(resp.Insights) == 0 {
			r.addIssue(c, "coaching response has no insights")
			return
		}
		r.Structure.Passed++
		for i, in := range resp.Insights {
			r.checkValue(c, fmt.Sprintf("insight %d", i), coachingInsightProblem(in))
		}

	case llm.PhasePostMortem:
		r.Structure.Checked++
		var found int
		for _, s := range insights.ExtractSections(c.ResponseContent) {
			if !s.Found {
				continue
			}
			found++
			r.checkValue(c, string(s.Type), insights.Evaluate(s.Content).Reason)
		}
		if found == 0 {
			r.addIssue(c, "no section markers")
			return
		}
		r.Structure.Passed++
	}
}

func (r *Report) checkValue(c *models.LLMConversation, what, problem string) {
	r.Values.Checked++
	if problem == "" {
		r.Values.Passed++
		return
	}
	r.addIssue(c, what+": "+problem)
}

func (r *Report) addIssue(c *models.LLMConversation, issue string) {
	if len(r.Issues) >= maxIssues {
		return
	}
	r.Issues = append(r.Issues, c.ID.String()+": "+issue)
}

func (r *Report) summarize() string {
	if r.Conversations == 0 {
		return "no recorded conversations"
	}

	var parts []string
	if r.Failed+r.TimedOut > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d calls failed", r.Failed+r.TimedOut, r.Conversations))
	}
	if r.Structure.Checked > r.Structure.Passed {
		parts = append(parts, fmt.Sprintf("%d malformed responses", r.Structure.Checked-r.Structure.Passed))
	}
	if r.Values.Checked > r.Values.Passed {
		parts = append(parts, fmt.Sprintf("%d invalid values", r.Values.Checked-r.Values.Passed))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("all %d responses followed the %s contract", r.Conversations, r.Phase)
	}
	return strings.Join(parts, "; ")
}

func detectedPatternProblem(p prompts.DetectedPattern) string {
	conf := p.Confidence.Float64()
	switch {
	case strings.TrimSpace(p.PatternName) == "":
		return "empty pattern_name"
	case conf < 0 || conf > 1:
		return fmt.Sprintf("confidence %.2f outside [0,1]", conf)
	case len(p.Evidence) == 0:
		return "no evidence"
	}
	return ""
}

func coachingInsightProblem(in prompts.CoachingInsight) string {
	conf := in.Confidence.Float64()
	switch {
	case !models.PatternInsightType(in.InsightType).IsValid():
		return fmt.Sprintf("unknown insight_type %q", in.InsightType)
	case conf < 0 || conf > 1:
		return fmt.Sprintf("confidence %.2f outside [0,1]", conf)
	}
	if v := insights.Evaluate(in.InsightText); !v.Accepted {
		return v.Reason
	}
	return ""
}

func callTokens(c *models.LLMConversation) int {
	if c.TotalTokens != nil {
		return *c.TotalTokens
	}
	var n int
	if c.PromptTokens != nil {
		n += *c.PromptTokens
	}
	if c.CompletionTokens != nil {
		n += *c.CompletionTokens
	}
	return n
}

// percent returns passed/checked as 0-100; an empty category scores 100.
func percent(passed, checked int) int {
	if checked == 0 {
		return 100
	}
	return passed * 100 / checked
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
