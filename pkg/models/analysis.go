package models

// AnalysisState is a step of the two-pass pipeline.
type AnalysisState string

const (
	StateIdle               AnalysisState = "idle"
	StateLoadingHistory     AnalysisState = "loading_history"
	StateDetecting          AnalysisState = "detecting"
	StatePersistingPatterns AnalysisState = "persisting_patterns"
	StateGeneratingCoaching AnalysisState = "generating_coaching"
	StatePersistingInsights AnalysisState = "persisting_insights"
	StateDone               AnalysisState = "done"
	StateError              AnalysisState = "error"
)

// AnalysisStatus tells callers which of the successful outcomes they got.
// Failures are returned as errors, not as a status.
type AnalysisStatus string

const (
	// AnalysisNeedsMoreData means there was not enough history to analyze.
	AnalysisNeedsMoreData AnalysisStatus = "needs_more_data"
	// AnalysisNoPatterns means detection ran but found nothing worth coaching on.
	AnalysisNoPatterns AnalysisStatus = "no_patterns"
	// AnalysisGenerated means at least one insight was produced.
	AnalysisGenerated AnalysisStatus = "generated"
	// AnalysisAllFiltered means the completion succeeded but every insight failed the quality gate.
	AnalysisAllFiltered AnalysisStatus = "all_filtered"
)

// RowFailure reports a single row that could not be written.
type RowFailure struct {
	Kind  string `json:"kind"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// AnalysisResult is returned by the full two-pass analysis and the coaching-only pass.
type AnalysisResult struct {
	Status           AnalysisStatus    `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	Findings         []PatternFinding  `json:"findings"`
	Patterns         []*UserPattern    `json:"patterns,omitempty"`
	Insights         []*PatternInsight `json:"insights"`
	ProjectsAnalyzed int               `json:"projects_analyzed"`
	NeedsMoreData    bool              `json:"needs_more_data"`
	CoachingSkipped  bool              `json:"coaching_skipped"`
	RejectedInsights int               `json:"rejected_insights"`
	Velocity         *LearningVelocity `json:"learning_velocity,omitempty"`
	FailedWrites     []RowFailure      `json:"failed_writes,omitempty"`
	FinalState       AnalysisState     `json:"final_state"`
}

// PostMortemAnalysisResult is returned when a single post-mortem is analyzed.
type PostMortemAnalysisResult struct {
	Status       AnalysisStatus `json:"status"`
	Insights     []*AIInsight   `json:"insights"`
	Rejected     int            `json:"rejected_sections"`
	FailedWrites []RowFailure   `json:"failed_writes,omitempty"`
}

// Reasons attached to a needs_more_data result.
const (
	ReasonNotEnoughProjects     = "not_enough_projects"
	ReasonNeedsPatternDetection = "needs_pattern_detection"
)

// ClearResult reports how many live rows a clear deactivated.
type ClearResult struct {
	PatternsCleared int64 `json:"patterns_cleared"`
	InsightsCleared int64 `json:"insights_cleared"`
}

// Dashboard is the read model behind the pattern dashboard.
type Dashboard struct {
	Patterns      []*UserPattern             `json:"patterns"`
	Insights      []*PatternInsight          `json:"insights"`
	Velocity      *LearningVelocity          `json:"learning_velocity,omitempty"`
	History       []*LearningMetricsSnapshot `json:"learning_history"`
	ProjectCount  int                        `json:"project_count"`
	NeedsMoreData bool                       `json:"needs_more_data"`
}
