package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// ProjectService defines the interface for project operations.
type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, p *models.Project) error
	List(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Project, error)
	// Update changes the editable fields of a project: description, epitaph
	// and revival status.
	Update(ctx context.Context, userID uuid.UUID, id uuid.UUID, update ProjectUpdate) (*models.Project, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ProjectUpdate carries the editable fields. Nil fields are left unchanged.
type ProjectUpdate struct {
	Description   *string
	Epitaph       *string
	RevivalStatus *models.RevivalStatus
}

type projectService struct {
	projectRepo repositories.ProjectRepository
	now         func() time.Time
	logger      *zap.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(projectRepo repositories.ProjectRepository, logger *zap.Logger) ProjectService {
	return &projectService{
		projectRepo: projectRepo,
		now:         time.Now,
		logger:      logger.Named("project-service"),
	}
}

// Ensure projectService implements ProjectService at compile time.
var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, userID uuid.UUID, p *models.Project) error {
	p.UserID = userID
	p.Name = strings.TrimSpace(p.Name)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	if p.RevivalStatus == "" {
		p.RevivalStatus = models.RevivalStatusBuried
	}

	if err := validateProject(p); err != nil {
		return err
	}

	if err := s.projectRepo.Create(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Project buried",
		zap.String("user_id", userID.String()),
		zap.String("project_id", p.ID.String()),
		zap.String("death_cause", string(p.DeathCause)))
	return nil
}

func (s *projectService) List(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return s.projectRepo.ListByUser(ctx, userID)
}

func (s *projectService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Project, error) {
	return s.projectRepo.GetByID(ctx, userID, id)
}

func (s *projectService) Update(ctx context.Context, userID uuid.UUID, id uuid.UUID, update ProjectUpdate) (*models.Project, error) {
	p, err := s.projectRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Epitaph != nil {
		p.Epitaph = *update.Epitaph
	}
	if update.RevivalStatus != nil {
		if !update.RevivalStatus.IsValid() {
			return nil, fmt.Errorf("revival_status %q: %w", *update.RevivalStatus, apperrors.ErrInvalidInput)
		}
		p.RevivalStatus = *update.RevivalStatus
	}

	if err := s.projectRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

func (s *projectService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.projectRepo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.logger.Info("Project deleted",
		zap.String("user_id", userID.String()),
		zap.String("project_id", id.String()))
	return nil
}

// validateProject checks the invariants of a new project record.
func validateProject(p *models.Project) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("name is required: %w", apperrors.ErrInvalidInput)
	case !p.DeathCause.IsValid():
		return fmt.Errorf("death_cause %q: %w", p.DeathCause, apperrors.ErrInvalidInput)
	case !p.RevivalStatus.IsValid():
		return fmt.Errorf("revival_status %q: %w", p.RevivalStatus, apperrors.ErrInvalidInput)
	case p.DeathDate.IsZero():
		return fmt.Errorf("death_date is required: %w", apperrors.ErrInvalidInput)
	case p.DeathDate.Before(p.CreatedAt):
		return fmt.Errorf("death_date precedes created_at: %w", apperrors.ErrInvalidInput)
	}
	return nil
}
