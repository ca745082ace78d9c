package models

import (
	"time"

	"github.com/google/uuid"
)

// PatternName identifies a behavioral signature.
// The heuristic detectors emit only the names below; hybrid detection may
// additionally persist model-named patterns in snake_case.
type PatternName string

const (
	PatternWeekendWarrior         PatternName = "weekend_warrior"
	PatternFrameworkHopper        PatternName = "framework_hopper"
	PatternProgressiveLearner     PatternName = "progressive_learner"
	PatternSerialStarter          PatternName = "serial_starter"
	PatternPerfectionistParalysis PatternName = "perfectionist_paralysis"
	PatternScopeCreeper           PatternName = "scope_creeper"

	// Recognised in prompts and stored rows but not emitted by any detector,
	// their inputs are only ever estimated.
	PatternEveningCoder    PatternName = "evening_coder"
	PatternAuthCurse       PatternName = "auth_curse"
	PatternLibraryOverload PatternName = "library_overload"
)

// PatternType groups pattern names.
type PatternType string

const (
	PatternTypeTimeBased  PatternType = "time_based"
	PatternTypeTechnical  PatternType = "technical"
	PatternTypeBehavioral PatternType = "behavioral"
)

// Type returns the group a pattern belongs to. Unknown names are behavioral.
func (n PatternName) Type() PatternType {
	switch n {
	case PatternWeekendWarrior, PatternEveningCoder:
		return PatternTypeTimeBased
	case PatternAuthCurse, PatternLibraryOverload, PatternFrameworkHopper, PatternProgressiveLearner:
		return PatternTypeTechnical
	default:
		return PatternTypeBehavioral
	}
}

var patternDescriptions = map[PatternName]string{
	PatternWeekendWarrior:         "Starts projects on weekends but abandons them by Monday",
	PatternAuthCurse:              "Projects that start with authentication always die quickly",
	PatternScopeCreeper:           "Continuously expands project scope until it becomes unmanageable",
	PatternSerialStarter:          "Starts new projects within days of abandoning previous ones",
	PatternPerfectionistParalysis: "Spends too much time on documentation/planning, not enough on coding",
	PatternEveningCoder:           "Only commits code in the evening, leading to burnout",
	PatternLibraryOverload:        "Uses too many dependencies, creating complexity",
	PatternFrameworkHopper:        "Never uses the same tech stack twice, preventing mastery",
	PatternProgressiveLearner:     "Builds on a consistent core technology while adding complementary tools",
}

// Description returns a one-line explanation of the pattern.
func (n PatternName) Description() string {
	if d, ok := patternDescriptions[n]; ok {
		return d
	}
	return "Unknown pattern"
}

// Evidence is the numeric/string payload a detector attaches to a finding.
// Persisted as JSONB.
type Evidence map[string]any

// PatternFinding is an in-memory detection result. It is never stored directly,
// the sync step turns findings into UserPattern rows.
type PatternFinding struct {
	PatternName        PatternName `json:"pattern_name"`
	Confidence         float64     `json:"confidence"`
	SupportingProjects []uuid.UUID `json:"supporting_projects"`
	Metadata           Evidence    `json:"metadata"`
	EvidenceText       string      `json:"insight_text"`
	// EvidenceLines carries model-supplied evidence for hybrid findings.
	EvidenceLines []string `json:"evidence,omitempty"`
	// Description overrides the built-in pattern description.
	Description string `json:"description,omitempty"`
	// ModelGenerated is set for findings named by the completion service.
	ModelGenerated bool `json:"ai_generated"`
}

// PatternValue is the JSONB document stored alongside a UserPattern.
type PatternValue struct {
	Evidence           []string    `json:"evidence"`
	Description        string      `json:"description"`
	Metadata           Evidence    `json:"metadata,omitempty"`
	SupportingProjects []uuid.UUID `json:"supporting_projects,omitempty"`
	ModelGenerated     bool        `json:"ai_generated"`
	AnalyzedAt         time.Time   `json:"analyzed_at"`
}

// UserPattern is a persisted behavioral signature for one user.
// Stored in graveyard_user_patterns. Stale rows are soft-deactivated, never deleted.
type UserPattern struct {
	ID              uuid.UUID    `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	PatternType     PatternType  `json:"pattern_type"`
	PatternName     PatternName  `json:"pattern_name"`
	PatternValue    PatternValue `json:"pattern_value"`
	Frequency       int          `json:"frequency"`
	ConfidenceScore float64      `json:"confidence_score"`
	IsActive        bool         `json:"is_active"`
	FirstDetectedAt time.Time    `json:"first_detected_at"`
	LastDetectedAt  time.Time    `json:"last_detected_at"`
	CreatedAt       time.Time    `json:"created_at"`
}
