package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// PatternSync reconciles detection output with the stored rows of a user.
// Both kinds of row are superseded by deactivating every live row and
// inserting the new set in one transaction, so repeated runs never leave
// duplicate live rows.
type PatternSync interface {
	// SyncPatterns supersedes the live patterns with findings and returns the
	// rows now live, re-read from the store.
	SyncPatterns(ctx context.Context, userID uuid.UUID, findings []models.PatternFinding) ([]*models.UserPattern, []models.RowFailure, error)
	// SyncInsights supersedes the live pattern insights.
	SyncInsights(ctx context.Context, userID uuid.UUID, insights []*models.PatternInsight) ([]*models.PatternInsight, []models.RowFailure, error)
}

type patternSync struct {
	patternRepo repositories.PatternRepository
	insightRepo repositories.PatternInsightRepository
	now         func() time.Time
	logger      *zap.Logger
}

// NewPatternSync creates a PatternSync.
func NewPatternSync(
	patternRepo repositories.PatternRepository,
	insightRepo repositories.PatternInsightRepository,
	logger *zap.Logger,
) PatternSync {
	return &patternSync{
		patternRepo: patternRepo,
		insightRepo: insightRepo,
		now:         time.Now,
		logger:      logger.Named("pattern-sync"),
	}
}

var _ PatternSync = (*patternSync)(nil)

func (s *patternSync) SyncPatterns(ctx context.Context, userID uuid.UUID, findings []models.PatternFinding) ([]*models.UserPattern, []models.RowFailure, error) {
	previous, err := s.patternRepo.LatestByName(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load previous patterns: %w", err)
	}

	now := s.now().UTC()
	rows := make([]*models.UserPattern, 0, len(findings))
	for _, f := range findings {
		row := patternFromFinding(userID, f, now)
		if prev, ok := previous[f.PatternName]; ok {
			row.Frequency = prev.Frequency + 1
			row.FirstDetectedAt = prev.FirstDetectedAt
		}
		rows = append(rows, row)
	}

	written, failures, err := s.patternRepo.ReplaceActive(ctx, userID, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("replace patterns: %w", err)
	}
	for _, f := range failures {
		metrics.RecordFailedWrite("user_pattern")
		s.logger.Warn("Failed to store pattern",
			zap.String("user_id", userID.String()),
			zap.String("pattern", f.Key),
			zap.String("error", f.Error))
	}
	for _, p := range written {
		metrics.RecordFinding(string(p.PatternName))
	}

	live, err := s.patternRepo.ListActive(ctx, userID)
	if err != nil {
		return nil, failures, fmt.Errorf("reload patterns: %w", err)
	}

	s.logger.Info("Patterns synced",
		zap.String("user_id", userID.String()),
		zap.Int("findings", len(findings)),
		zap.Int("written", len(written)),
		zap.Int("failed", len(failures)))
	return live, failures, nil
}

func (s *patternSync) SyncInsights(ctx context.Context, userID uuid.UUID, insights []*models.PatternInsight) ([]*models.PatternInsight, []models.RowFailure, error) {
	for _, in := range insights {
		in.UserID = userID
		in.IsActive = true
	}

	written, failures, err := s.insightRepo.ReplaceActive(ctx, userID, insights)
	if err != nil {
		return nil, nil, fmt.Errorf("replace insights: %w", err)
	}
	for _, f := range failures {
		metrics.RecordFailedWrite("pattern_insight")
		s.logger.Warn("Failed to store insight",
			zap.String("user_id", userID.String()),
			zap.String("insight_type", f.Key),
			zap.String("error", f.Error))
	}
	return written, failures, nil
}

func patternFromFinding(userID uuid.UUID, f models.PatternFinding, now time.Time) *models.UserPattern {
	description := f.Description
	if description == "" {
		description = f.PatternName.Description()
	}
	evidence := f.EvidenceLines
	if len(evidence) == 0 && f.EvidenceText != "" {
		evidence = []string{f.EvidenceText}
	}

	return &models.UserPattern{
		ID:          uuid.New(),
		UserID:      userID,
		PatternType: f.PatternName.Type(),
		PatternName: f.PatternName,
		PatternValue: models.PatternValue{
			Evidence:           evidence,
			Description:        description,
			Metadata:           f.Metadata,
			SupportingProjects: f.SupportingProjects,
			ModelGenerated:     f.ModelGenerated,
			AnalyzedAt:         now,
		},
		Frequency:       1,
		ConfidenceScore: f.Confidence,
		IsActive:        true,
		FirstDetectedAt: now,
		LastDetectedAt:  now,
	}
}
