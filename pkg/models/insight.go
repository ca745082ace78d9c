package models

import (
	"time"

	"github.com/google/uuid"
)

// PatternInsightType classifies a coaching statement about a user's pattern set.
type PatternInsightType string

const (
	PatternInsightWarning        PatternInsightType = "warning"
	PatternInsightRecommendation PatternInsightType = "recommendation"
	PatternInsightObservation    PatternInsightType = "observation"
	PatternInsightPrediction     PatternInsightType = "prediction"
)

// IsValid returns true if the type is one of the known values.
func (t PatternInsightType) IsValid() bool {
	switch t {
	case PatternInsightWarning, PatternInsightRecommendation, PatternInsightObservation, PatternInsightPrediction:
		return true
	default:
		return false
	}
}

// InsightFeedback is the user's rating of a PatternInsight.
type InsightFeedback string

const (
	FeedbackHelpful    InsightFeedback = "helpful"
	FeedbackNotHelpful InsightFeedback = "not_helpful"
	FeedbackIrrelevant InsightFeedback = "irrelevant"
)

// IsValid returns true if the feedback is one of the known values.
func (f InsightFeedback) IsValid() bool {
	switch f {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackIrrelevant:
		return true
	default:
		return false
	}
}

// PatternInsight is a coaching statement derived from a user's aggregate patterns.
// Stored in graveyard_pattern_insights.
type PatternInsight struct {
	ID                uuid.UUID          `json:"id"`
	UserID            uuid.UUID          `json:"user_id"`
	InsightText       string             `json:"insight_text"`
	InsightType       PatternInsightType `json:"insight_type"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ProjectsAnalyzed  int                `json:"projects_analyzed"`
	RelatedPatternIDs []uuid.UUID        `json:"related_pattern_ids"`
	IsActive          bool               `json:"is_active"`
	Feedback          *InsightFeedback   `json:"feedback,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// AIInsightType is the section of a post-mortem analysis an insight came from.
type AIInsightType string

const (
	AIInsightPatternRecognition AIInsightType = "pattern_recognition"
	AIInsightCoaching           AIInsightType = "coaching"
	AIInsightQuestions          AIInsightType = "questions"
	AIInsightStrategies         AIInsightType = "strategies"
)

// AIInsight is one typed section of a post-mortem analysis.
// Stored in graveyard_ai_insights. Rows for a post-mortem are replaced wholesale
// on every regeneration.
type AIInsight struct {
	ID              uuid.UUID     `json:"id"`
	ProjectID       uuid.UUID     `json:"project_id"`
	PostMortemID    uuid.UUID     `json:"post_mortem_id"`
	InsightType     AIInsightType `json:"insight_type"`
	Content         string        `json:"content"`
	ConfidenceScore float64       `json:"confidence_score"`
	CreatedAt       time.Time     `json:"created_at"`
}

// PinKind distinguishes the two insight tables a pin can point at.
type PinKind string

const (
	PinKindProjectSpecific PinKind = "project_specific"
	PinKindPatternAnalysis PinKind = "pattern_analysis"
)

// IsValid returns true if the kind is one of the known values.
func (k PinKind) IsValid() bool {
	return k == PinKindProjectSpecific || k == PinKindPatternAnalysis
}

// PinnedInsight bookmarks an AIInsight or a PatternInsight for a user.
// Stored in graveyard_pinned_insights. Exactly one of AIInsightID and
// PatternInsightID is set, matching Kind.
type PinnedInsight struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Kind             PinKind    `json:"insight_type"`
	AIInsightID      *uuid.UUID `json:"ai_insight_id,omitempty"`
	PatternInsightID *uuid.UUID `json:"pattern_insight_id,omitempty"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	PinnedAt         time.Time  `json:"pinned_at"`

	// Populated by list queries.
	AIInsight      *AIInsight      `json:"ai_insight,omitempty"`
	PatternInsight *PatternInsight `json:"pattern_insight,omitempty"`
	ProjectName    *string         `json:"project_name,omitempty"`
}

// InsightID returns whichever insight id the pin refers to.
func (p *PinnedInsight) InsightID() uuid.UUID {
	if p.AIInsightID != nil {
		return *p.AIInsightID
	}
	if p.PatternInsightID != nil {
		return *p.PatternInsightID
	}
	return uuid.Nil
}
