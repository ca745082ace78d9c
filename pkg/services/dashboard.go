package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/patterns"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

const dashboardHistoryLimit = 10

// DashboardService assembles the pattern dashboard.
type DashboardService interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error)
}

type dashboardService struct {
	projectRepo  repositories.ProjectRepository
	patternRepo  repositories.PatternRepository
	insightRepo  repositories.PatternInsightRepository
	metricsRepo  repositories.LearningMetricsRepository
	insightLimit int
	logger       *zap.Logger
}

// NewDashboardService creates a DashboardService showing the top insightLimit insights.
func NewDashboardService(
	projectRepo repositories.ProjectRepository,
	patternRepo repositories.PatternRepository,
	insightRepo repositories.PatternInsightRepository,
	metricsRepo repositories.LearningMetricsRepository,
	insightLimit int,
	logger *zap.Logger,
) DashboardService {
	if insightLimit <= 0 {
		insightLimit = 5
	}
	return &dashboardService{
		projectRepo:  projectRepo,
		patternRepo:  patternRepo,
		insightRepo:  insightRepo,
		metricsRepo:  metricsRepo,
		insightLimit: insightLimit,
		logger:       logger.Named("dashboard-service"),
	}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Get(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	projects, err := s.projectRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	live, err := s.patternRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	top, err := s.insightRepo.ListActive(ctx, userID, s.insightLimit)
	if err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}
	history, err := s.metricsRepo.ListRecent(ctx, userID, dashboardHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load learning metrics: %w", err)
	}

	d := &models.Dashboard{
		Patterns:      nonNil(live),
		Insights:      nonNil(top),
		History:       nonNil(history),
		ProjectCount:  len(projects),
		NeedsMoreData: len(projects) < 2,
	}
	if len(projects) > 0 {
		v := patterns.LearningVelocity(projects)
		d.Velocity = &v
	}
	return d, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
