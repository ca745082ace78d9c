package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// InsightService handles user actions on generated insights: feedback and pins.
type InsightService interface {
	SetFeedback(ctx context.Context, userID, insightID uuid.UUID, feedback models.InsightFeedback) error

	// Pin bookmarks an insight the user owns. Pinning it twice is ErrConflict.
	Pin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID, notes string) (*models.PinnedInsight, error)
	Unpin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error
	// ListPins returns the user's pins. A nil kind lists both kinds.
	ListPins(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error)
}

type insightService struct {
	patternInsightRepo repositories.PatternInsightRepository
	aiInsightRepo      repositories.AIInsightRepository
	pinRepo            repositories.PinnedInsightRepository
	logger             *zap.Logger
}

// NewInsightService creates an InsightService.
func NewInsightService(
	patternInsightRepo repositories.PatternInsightRepository,
	aiInsightRepo repositories.AIInsightRepository,
	pinRepo repositories.PinnedInsightRepository,
	logger *zap.Logger,
) InsightService {
	return &insightService{
		patternInsightRepo: patternInsightRepo,
		aiInsightRepo:      aiInsightRepo,
		pinRepo:            pinRepo,
		logger:             logger.Named("insight-service"),
	}
}

var _ InsightService = (*insightService)(nil)

func (s *insightService) SetFeedback(ctx context.Context, userID, insightID uuid.UUID, feedback models.InsightFeedback) error {
	if !feedback.IsValid() {
		return fmt.Errorf("feedback %q: %w", feedback, apperrors.ErrInvalidInput)
	}
	if err := s.patternInsightRepo.SetFeedback(ctx, userID, insightID, feedback); err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	return nil
}

func (s *insightService) Pin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID, notes string) (*models.PinnedInsight, error) {
	pin := &models.PinnedInsight{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   kind,
	}
	if n := strings.TrimSpace(notes); n != "" {
		pin.Notes = &n
	}

	switch kind {
	case models.PinKindProjectSpecific:
		insight, err := s.aiInsightRepo.GetForUser(ctx, userID, insightID)
		if err != nil {
			return nil, err
		}
		pin.AIInsightID = &insight.ID
		pin.ProjectID = &insight.ProjectID
		pin.AIInsight = insight
	case models.PinKindPatternAnalysis:
		insight, err := s.patternInsightRepo.GetByID(ctx, userID, insightID)
		if err != nil {
			return nil, err
		}
		pin.PatternInsightID = &insight.ID
		pin.PatternInsight = insight
	default:
		return nil, fmt.Errorf("insight_type %q: %w", kind, apperrors.ErrInvalidInput)
	}

	if err := s.pinRepo.Create(ctx, pin); err != nil {
		return nil, err
	}

	s.logger.Info("Insight pinned",
		zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)),
		zap.String("insight_id", insightID.String()))
	return pin, nil
}

func (s *insightService) Unpin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error {
	if !kind.IsValid() {
		return fmt.Errorf("insight_type %q: %w", kind, apperrors.ErrInvalidInput)
	}
	return s.pinRepo.Delete(ctx, userID, kind, insightID)
}

func (s *insightService) ListPins(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error) {
	if kind != nil && !kind.IsValid() {
		return nil, fmt.Errorf("insight_type %q: %w", *kind, apperrors.ErrInvalidInput)
	}
	return s.pinRepo.List(ctx, userID, kind)
}
