package models

import (
	"time"

	"github.com/google/uuid"
)

// Trend is the direction of a learning metric.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// LearningVelocity summarises how a user's project outcomes are changing.
type LearningVelocity struct {
	LifespanTrend         Trend `json:"avg_project_lifespan_trend"`
	ScopeManagementScore  int   `json:"scope_management_score"`
	TechnologyConsistency int   `json:"technology_consistency_score"`
	CompletionRateTrend   Trend `json:"completion_rate_trend"`
}

// LearningMetricsSnapshot is a LearningVelocity recorded at the end of an analysis run.
// Stored in graveyard_user_learning_metrics.
type LearningMetricsSnapshot struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	Velocity         LearningVelocity `json:"velocity"`
	ProjectsAnalyzed int              `json:"projects_analyzed"`
	CreatedAt        time.Time        `json:"created_at"`
}
