package services

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/config"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/insights"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/patterns"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/prompts"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/retry"
)

// PatternAnalysisService runs the two-pass behavioral analysis for a user.
type PatternAnalysisService interface {
	// RunFullAnalysis detects patterns over the user's whole history, replaces
	// the live patterns and then regenerates coaching insights from them.
	RunFullAnalysis(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)

	// RunCoaching regenerates coaching insights from the stored live patterns
	// without running detection.
	RunCoaching(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)

	// ClearInsights deactivates every live pattern and pattern insight.
	ClearInsights(ctx context.Context, userID uuid.UUID) (*models.ClearResult, error)
}

// AnalysisSettings tunes the orchestrator.
type AnalysisSettings struct {
	MinProjects               int
	ConfidenceThreshold       float64
	DetectionMode             string
	EstimatedConfidenceFactor float64
	CoachingHistoryLimit      int
	Retry                     *retry.Config
}

// AnalysisSettingsFrom builds settings from loaded configuration.
func AnalysisSettingsFrom(cfg *config.Config) AnalysisSettings {
	return AnalysisSettings{
		MinProjects:               cfg.Analysis.MinProjects,
		ConfidenceThreshold:       cfg.Analysis.ConfidenceThreshold,
		DetectionMode:             cfg.Analysis.DetectionMode,
		EstimatedConfidenceFactor: cfg.Analysis.EstimatedConfidenceFactor,
		CoachingHistoryLimit:      cfg.Analysis.CoachingHistoryLimit,
		Retry:                     retry.CompletionConfig(cfg.LLM.MaxRetries),
	}
}

func (s *AnalysisSettings) applyDefaults() {
	if s.MinProjects < 2 {
		s.MinProjects = 2
	}
	if s.ConfidenceThreshold <= 0 {
		s.ConfidenceThreshold = patterns.DefaultConfidenceThreshold
	}
	if s.DetectionMode == "" {
		s.DetectionMode = config.DetectionHeuristic
	}
	if s.CoachingHistoryLimit <= 0 {
		s.CoachingHistoryLimit = 5
	}
	if s.Retry == nil {
		s.Retry = retry.CompletionConfig(2)
	}
}

type patternAnalysisService struct {
	projectRepo repositories.ProjectRepository
	patternRepo repositories.PatternRepository
	insightRepo repositories.PatternInsightRepository
	metricsRepo repositories.LearningMetricsRepository
	metadata    MetadataProvider
	sync        PatternSync
	detector    *patterns.Detector
	llmFactory  llm.LLMClientFactory
	locker      *AnalysisLocker
	settings    AnalysisSettings
	logger      *zap.Logger
}

// NewPatternAnalysisService creates a PatternAnalysisService.
func NewPatternAnalysisService(
	projectRepo repositories.ProjectRepository,
	patternRepo repositories.PatternRepository,
	insightRepo repositories.PatternInsightRepository,
	metricsRepo repositories.LearningMetricsRepository,
	metadata MetadataProvider,
	sync PatternSync,
	llmFactory llm.LLMClientFactory,
	locker *AnalysisLocker,
	settings AnalysisSettings,
	logger *zap.Logger,
) PatternAnalysisService {
	settings.applyDefaults()
	return &patternAnalysisService{
		projectRepo: projectRepo,
		patternRepo: patternRepo,
		insightRepo: insightRepo,
		metricsRepo: metricsRepo,
		metadata:    metadata,
		sync:        sync,
		detector: patterns.NewDetector(patterns.Options{
			ConfidenceThreshold:       settings.ConfidenceThreshold,
			EstimatedConfidenceFactor: settings.EstimatedConfidenceFactor,
		}),
		llmFactory: llmFactory,
		locker:     locker,
		settings:   settings,
		logger:     logger.Named("pattern-analysis"),
	}
}

var _ PatternAnalysisService = (*patternAnalysisService)(nil)

func (s *patternAnalysisService) RunFullAnalysis(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return runLocked(ctx, s.locker, runKindFull, resourcePatterns, userID, func(ctx context.Context) (*models.AnalysisResult, error) {
		return s.runFull(ctx, userID)
	})
}

func (s *patternAnalysisService) RunCoaching(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return runLocked(ctx, s.locker, runKindCoaching, resourcePatterns, userID, func(ctx context.Context) (*models.AnalysisResult, error) {
		return s.runCoaching(ctx, userID)
	})
}

func (s *patternAnalysisService) runFull(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	trigger := models.GetTrigger(ctx)
	run := newAnalysisRun(runKindFull, userID, trigger, s.logger)
	ctx = llm.WithContext(ctx, map[string]any{"user_id": userID.String(), "run": runKindFull, "trigger": string(trigger)})

	run.enter(models.StateLoadingHistory)
	projects, err := s.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("load projects: %w", err))
	}

	result := newAnalysisResult(len(projects))
	if len(projects) < s.settings.MinProjects {
		err := fmt.Errorf("%d projects, need %d: %w", len(projects), s.settings.MinProjects, apperrors.ErrInsufficientData)
		return run.stopEarly(result, models.ReasonNotEnoughProjects, err), nil
	}

	metadata, metadataFailures, err := s.metadata.MetadataFor(ctx, projects)
	if err != nil {
		return nil, run.fail(err)
	}
	result.FailedWrites = append(result.FailedWrites, metadataFailures...)

	run.enter(models.StateDetecting)
	findings := s.detector.Detect(projects, metadata)
	if s.settings.DetectionMode == config.DetectionHybrid {
		modelFindings, err := s.detectWithModel(ctx, userID, projects, metadata, findings)
		if err != nil {
			return nil, run.fail(err)
		}
		findings = mergeFindings(findings, modelFindings)
	}
	velocity := patterns.LearningVelocity(projects)
	result.Findings = findings
	result.Velocity = &velocity

	run.enter(models.StatePersistingPatterns)
	live, failures, err := s.sync.SyncPatterns(ctx, userID, findings)
	if err != nil {
		return nil, run.fail(fmt.Errorf("%s: %w", models.StatePersistingPatterns, err))
	}
	result.Patterns = live
	result.FailedWrites = append(result.FailedWrites, failures...)

	if failure := s.saveSnapshot(ctx, userID, velocity, len(projects)); failure != nil {
		result.FailedWrites = append(result.FailedWrites, *failure)
	}

	if len(live) == 0 {
		result.Status = models.AnalysisNoPatterns
		result.CoachingSkipped = true
		result.FinalState = run.finish(result.Status)
		return result, nil
	}

	if err := s.coach(ctx, run, userID, live, projects, &velocity, result); err != nil {
		return nil, run.fail(err)
	}
	result.FinalState = run.finish(result.Status)
	return result, nil
}

func (s *patternAnalysisService) runCoaching(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	trigger := models.GetTrigger(ctx)
	run := newAnalysisRun(runKindCoaching, userID, trigger, s.logger)
	ctx = llm.WithContext(ctx, map[string]any{"user_id": userID.String(), "run": runKindCoaching, "trigger": string(trigger)})

	run.enter(models.StateLoadingHistory)
	live, err := s.patternRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("load patterns: %w", err))
	}
	projects, err := s.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("load projects: %w", err))
	}

	result := newAnalysisResult(len(projects))
	result.Patterns = live
	if len(live) == 0 {
		err := fmt.Errorf("no active patterns: %w", apperrors.ErrInsufficientData)
		return run.stopEarly(result, models.ReasonNeedsPatternDetection, err), nil
	}

	velocity := patterns.LearningVelocity(projects)
	result.Velocity = &velocity

	if err := s.coach(ctx, run, userID, live, projects, &velocity, result); err != nil {
		return nil, run.fail(err)
	}
	result.FinalState = run.finish(result.Status)
	return result, nil
}

// coach runs the second pass: prompt from the persisted patterns, completion,
// quality gate, then insight replacement. It fills in result's insight fields.
func (s *patternAnalysisService) coach(
	ctx context.Context,
	run *analysisRun,
	userID uuid.UUID,
	live []*models.UserPattern,
	projects []*models.Project,
	velocity *models.LearningVelocity,
	result *models.AnalysisResult,
) error {
	run.enter(models.StateGeneratingCoaching)

	client, err := s.llmFactory.CreateForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	recent := newestFirst(projects, s.settings.CoachingHistoryLimit)
	summaries := make([]prompts.ProjectSummary, len(recent))
	for i, p := range recent {
		summaries[i] = prompts.SummarizeProject(p, nil)
	}

	prompt := prompts.BuildCoachingPrompt(prompts.CoachingContext{
		Patterns:       patternContexts(live),
		RecentProjects: summaries,
		Velocity:       velocity,
		ProjectCount:   len(projects),
	})

	response, err := completeJSON[prompts.CoachingResponse](llm.WithPhase(ctx, llm.PhaseCoaching), completion{
		client:        client,
		retry:         s.settings.Retry,
		prompt:        prompt,
		systemMessage: prompts.CoachingSystemMessage(),
		opts:          coachingOptions,
		logger:        s.logger,
	})
	if err != nil {
		return err
	}

	kept, rejected := gateCoachingInsights(response.Insights, live, len(projects))
	result.RejectedInsights = rejected

	run.enter(models.StatePersistingInsights)
	written, failures, err := s.sync.SyncInsights(ctx, userID, kept)
	if err != nil {
		return fmt.Errorf("%s: %w", models.StatePersistingInsights, err)
	}
	result.Insights = written
	result.FailedWrites = append(result.FailedWrites, failures...)

	if len(kept) == 0 {
		result.Status = models.AnalysisAllFiltered
	} else {
		result.Status = models.AnalysisGenerated
	}
	return nil
}

// gateCoachingInsights drops insights that fail the quality gate and turns
// the rest into rows. Related pattern names are resolved against live.
func gateCoachingInsights(raw []prompts.CoachingInsight, live []*models.UserPattern, projectCount int) ([]*models.PatternInsight, int) {
	idsByName := make(map[string]uuid.UUID, len(live))
	for _, p := range live {
		idsByName[string(p.PatternName)] = p.ID
	}

	kept := make([]*models.PatternInsight, 0, len(raw))
	rejected := 0
	for _, in := range raw {
		text := strings.TrimSpace(in.InsightText)
		verdict := insights.Evaluate(text)
		if !verdict.Accepted {
			rejected++
			metrics.RecordGateRejection(verdict.Reason)
			continue
		}

		insightType := models.PatternInsightType(strings.ToLower(strings.TrimSpace(in.InsightType)))
		if !insightType.IsValid() {
			insightType = models.PatternInsightObservation
		}

		related := make([]uuid.UUID, 0, len(in.RelatedPatterns))
		for _, name := range in.RelatedPatterns {
			if id, ok := idsByName[normalizePatternName(name)]; ok && !slices.Contains(related, id) {
				related = append(related, id)
			}
		}

		confidence := verdict.Score
		if c := in.Confidence.Float64(); c > 0 && c <= 1 {
			confidence = min(confidence, c)
		}

		kept = append(kept, &models.PatternInsight{
			ID:                uuid.New(),
			InsightText:       text,
			InsightType:       insightType,
			ConfidenceScore:   round2(confidence),
			ProjectsAnalyzed:  projectCount,
			RelatedPatternIDs: related,
			IsActive:          true,
		})
	}
	return kept, rejected
}

// detectWithModel runs the model-named detection pass used in hybrid mode.
func (s *patternAnalysisService) detectWithModel(
	ctx context.Context,
	userID uuid.UUID,
	projects []*models.Project,
	metadata patterns.MetadataByProject,
	heuristic []models.PatternFinding,
) ([]models.PatternFinding, error) {
	client, err := s.llmFactory.CreateForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	summaries := make([]prompts.ProjectSummary, len(projects))
	for i, p := range projects {
		summaries[i] = prompts.SummarizeProject(p, metadata[p.ID])
	}
	already := make([]models.PatternName, len(heuristic))
	for i, f := range heuristic {
		already[i] = f.PatternName
	}

	response, err := completeJSON[prompts.DetectionResponse](llm.WithPhase(ctx, llm.PhaseDetection), completion{
		client:        client,
		retry:         s.settings.Retry,
		prompt:        prompts.BuildPatternDetectionPrompt(summaries, already),
		systemMessage: prompts.PatternDetectionSystemMessage(),
		opts:          detectionOptions,
		logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}

	var findings []models.PatternFinding
	for _, dp := range response.Patterns {
		name := normalizePatternName(dp.PatternName)
		if name == "" || dp.Confidence.Float64() <= s.settings.ConfidenceThreshold {
			continue
		}
		findings = append(findings, models.PatternFinding{
			PatternName:    models.PatternName(name),
			Confidence:     round2(min(dp.Confidence.Float64(), 1)),
			Metadata:       models.Evidence{"source": "model"},
			EvidenceLines:  dp.Evidence,
			Description:    strings.TrimSpace(dp.Description),
			ModelGenerated: true,
		})
	}
	return findings, nil
}

// mergeFindings adds model findings whose names the heuristics did not
// produce, then orders everything by descending confidence.
func mergeFindings(heuristic, model []models.PatternFinding) []models.PatternFinding {
	seen := make(map[models.PatternName]bool, len(heuristic)+len(model))
	merged := make([]models.PatternFinding, 0, len(heuristic)+len(model))
	for _, f := range heuristic {
		seen[f.PatternName] = true
		merged = append(merged, f)
	}
	for _, f := range model {
		if seen[f.PatternName] {
			continue
		}
		seen[f.PatternName] = true
		merged = append(merged, f)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}

var nonNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// normalizePatternName turns a model-supplied name into snake_case.
func normalizePatternName(name string) string {
	return strings.Trim(nonNameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_"), "_")
}

func (s *patternAnalysisService) saveSnapshot(ctx context.Context, userID uuid.UUID, velocity models.LearningVelocity, projectCount int) *models.RowFailure {
	snapshot := &models.LearningMetricsSnapshot{
		ID:               uuid.New(),
		UserID:           userID,
		Velocity:         velocity,
		ProjectsAnalyzed: projectCount,
	}
	if err := s.metricsRepo.Save(ctx, snapshot); err != nil {
		metrics.RecordFailedWrite("learning_metrics")
		s.logger.Warn("Failed to store learning metrics snapshot",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return &models.RowFailure{Kind: "learning_metrics", Key: snapshot.ID.String(), Error: err.Error()}
	}
	return nil
}

func (s *patternAnalysisService) ClearInsights(ctx context.Context, userID uuid.UUID) (*models.ClearResult, error) {
	patternsCleared, err := s.patternRepo.DeactivateAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("deactivate patterns: %w", err)
	}
	insightsCleared, err := s.insightRepo.DeactivateAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("deactivate insights: %w", err)
	}

	s.logger.Info("Cleared patterns and insights",
		zap.String("user_id", userID.String()),
		zap.Int64("patterns", patternsCleared),
		zap.Int64("insights", insightsCleared))
	return &models.ClearResult{PatternsCleared: patternsCleared, InsightsCleared: insightsCleared}, nil
}

func newAnalysisResult(projectCount int) *models.AnalysisResult {
	return &models.AnalysisResult{
		Findings:         []models.PatternFinding{},
		Insights:         []*models.PatternInsight{},
		ProjectsAnalyzed: projectCount,
	}
}

// newestFirst returns up to limit projects from an oldest-first list, newest first.
func newestFirst(projects []*models.Project, limit int) []*models.Project {
	out := make([]*models.Project, 0, min(limit, len(projects)))
	for i := len(projects) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, projects[i])
	}
	return out
}

func patternContexts(live []*models.UserPattern) []prompts.PatternContext {
	out := make([]prompts.PatternContext, len(live))
	for i, p := range live {
		out[i] = prompts.PatternContext{
			Name:       p.PatternName,
			Type:       p.PatternType,
			Frequency:  p.Frequency,
			Confidence: p.ConfidenceScore,
			Evidence:   p.PatternValue.Metadata,
		}
	}
	return out
}
