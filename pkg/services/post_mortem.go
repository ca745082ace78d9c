package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/insights"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/patterns"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/prompts"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/retry"
)

// PostMortemService manages reflections and their AI analysis.
type PostMortemService interface {
	// Save creates or replaces the post-mortem of a project the user owns.
	Save(ctx context.Context, userID uuid.UUID, pm *models.PostMortem) error
	Get(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortem, error)

	// Analyze generates the typed insight sections for a project's post-mortem
	// and replaces any previous ones.
	Analyze(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error)

	// ListInsights returns the stored insight sections for a project.
	ListInsights(ctx context.Context, userID, projectID uuid.UUID) ([]*models.AIInsight, error)
}

// PostMortemSettings tunes post-mortem analysis.
type PostMortemSettings struct {
	HistoryLimit int
	Retry        *retry.Config
}

type postMortemService struct {
	projectRepo    repositories.ProjectRepository
	postMortemRepo repositories.PostMortemRepository
	patternRepo    repositories.PatternRepository
	aiInsightRepo  repositories.AIInsightRepository
	llmFactory     llm.LLMClientFactory
	locker         *AnalysisLocker
	settings       PostMortemSettings
	logger         *zap.Logger
}

// NewPostMortemService creates a PostMortemService.
func NewPostMortemService(
	projectRepo repositories.ProjectRepository,
	postMortemRepo repositories.PostMortemRepository,
	patternRepo repositories.PatternRepository,
	aiInsightRepo repositories.AIInsightRepository,
	llmFactory llm.LLMClientFactory,
	locker *AnalysisLocker,
	settings PostMortemSettings,
	logger *zap.Logger,
) PostMortemService {
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 3
	}
	if settings.Retry == nil {
		settings.Retry = retry.CompletionConfig(2)
	}
	return &postMortemService{
		projectRepo:    projectRepo,
		postMortemRepo: postMortemRepo,
		patternRepo:    patternRepo,
		aiInsightRepo:  aiInsightRepo,
		llmFactory:     llmFactory,
		locker:         locker,
		settings:       settings,
		logger:         logger.Named("post-mortem-service"),
	}
}

var _ PostMortemService = (*postMortemService)(nil)

func (s *postMortemService) Save(ctx context.Context, userID uuid.UUID, pm *models.PostMortem) error {
	if _, err := s.projectRepo.GetByID(ctx, userID, pm.ProjectID); err != nil {
		return err
	}
	if pm.IsEmpty() {
		return fmt.Errorf("post-mortem needs at least one reflection: %w", apperrors.ErrInvalidInput)
	}
	if err := s.postMortemRepo.Upsert(ctx, pm); err != nil {
		return fmt.Errorf("save post-mortem: %w", err)
	}
	return nil
}

func (s *postMortemService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortem, error) {
	if _, err := s.projectRepo.GetByID(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.postMortemRepo.GetByProject(ctx, projectID)
}

func (s *postMortemService) ListInsights(ctx context.Context, userID, projectID uuid.UUID) ([]*models.AIInsight, error) {
	if _, err := s.projectRepo.GetByID(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.aiInsightRepo.ListByProject(ctx, projectID)
}

func (s *postMortemService) Analyze(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error) {
	kind := runKindPostMortem + ":" + projectID.String()
	resource := resourcePostMortem + ":" + projectID.String()
	return runLocked(ctx, s.locker, kind, resource, userID, func(ctx context.Context) (*models.PostMortemAnalysisResult, error) {
		return s.analyze(ctx, userID, projectID)
	})
}

func (s *postMortemService) analyze(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error) {
	trigger := models.GetTrigger(ctx)
	run := newAnalysisRun(runKindPostMortem, userID, trigger, s.logger)
	ctx = llm.WithContext(ctx, map[string]any{
		"user_id":    userID.String(),
		"project_id": projectID.String(),
		"run":        runKindPostMortem,
		"trigger":    string(trigger),
	})

	run.enter(models.StateLoadingHistory)
	project, err := s.projectRepo.GetByID(ctx, userID, projectID)
	if err != nil {
		return nil, run.fail(err)
	}
	pm, err := s.postMortemRepo.GetByProject(ctx, projectID)
	if err != nil {
		return nil, run.fail(err)
	}

	all, err := s.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("load projects: %w", err))
	}
	history, err := s.history(ctx, all, projectID)
	if err != nil {
		return nil, run.fail(err)
	}
	live, err := s.patternRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("load patterns: %w", err))
	}
	velocity := patterns.LearningVelocity(all)

	run.enter(models.StateGeneratingCoaching)
	client, err := s.llmFactory.CreateForUser(ctx, userID)
	if err != nil {
		return nil, run.fail(fmt.Errorf("create llm client: %w", err))
	}

	prompt := prompts.BuildPostMortemPrompt(prompts.PostMortemContext{
		ProjectName:    project.Name,
		Description:    project.Description,
		DeathCause:     project.DeathCause,
		TechStack:      project.TechStack,
		WhatProblem:    pm.WhatProblem,
		WhatWentWrong:  pm.WhatWentWrong,
		LessonsLearned: pm.LessonsLearned,
		History:        history,
		Patterns:       patternContexts(live),
		Velocity:       &velocity,
		ProjectCount:   len(all),
	})

	text, err := completion{
		client:        client,
		retry:         s.settings.Retry,
		prompt:        prompt,
		systemMessage: prompts.PostMortemSystemMessage(),
		opts:          postMortemOptions,
		logger:        s.logger,
	}.text(llm.WithPhase(ctx, llm.PhasePostMortem))
	if err != nil {
		return nil, run.fail(err)
	}

	parsed, rejections := insights.Parse(text)
	for _, r := range rejections {
		metrics.RecordGateRejection(r.Reason)
		s.logger.Debug("Insight section rejected",
			zap.String("section", string(r.Type)),
			zap.String("reason", r.Reason),
			zap.Float64("score", r.Score))
	}

	rows := make([]*models.AIInsight, len(parsed))
	for i, p := range parsed {
		rows[i] = &models.AIInsight{
			ID:              uuid.New(),
			ProjectID:       projectID,
			PostMortemID:    pm.ID,
			InsightType:     p.Type,
			Content:         p.Content,
			ConfidenceScore: round2(p.Confidence),
		}
	}

	run.enter(models.StatePersistingInsights)
	written, failures, err := s.aiInsightRepo.ReplaceForPostMortem(ctx, pm.ID, rows)
	if err != nil {
		return nil, run.fail(fmt.Errorf("%s: %w", models.StatePersistingInsights, err))
	}
	for range failures {
		metrics.RecordFailedWrite("ai_insight")
	}

	result := &models.PostMortemAnalysisResult{
		Status:       models.AnalysisGenerated,
		Insights:     written,
		Rejected:     len(rejections),
		FailedWrites: failures,
	}
	if len(parsed) == 0 {
		result.Status = models.AnalysisAllFiltered
	}
	run.finish(result.Status)
	return result, nil
}

// history returns the most recent other projects with their reflections.
func (s *postMortemService) history(ctx context.Context, all []*models.Project, exclude uuid.UUID) ([]prompts.HistoryEntry, error) {
	others := make([]*models.Project, 0, len(all))
	for _, p := range all {
		if p.ID != exclude {
			others = append(others, p)
		}
	}
	recent := newestFirst(others, s.settings.HistoryLimit)
	if len(recent) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(recent))
	for i, p := range recent {
		ids[i] = p.ID
	}
	reflections, err := s.postMortemRepo.GetByProjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load previous post-mortems: %w", err)
	}

	entries := make([]prompts.HistoryEntry, len(recent))
	for i, p := range recent {
		entry := prompts.HistoryEntry{
			Name:       p.Name,
			DeathCause: p.DeathCause,
			TechStack:  p.TechStack,
		}
		if pm, ok := reflections[p.ID]; ok {
			entry.WhatWentWrong = pm.WhatWentWrong
			entry.LessonsLearned = pm.LessonsLearned
		}
		entries[i] = entry
	}
	return entries, nil
}
