package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// PinnedInsightRepository provides data access for bookmarked insights.
type PinnedInsightRepository interface {
	// Create pins an insight. Pinning the same insight twice is ErrConflict.
	Create(ctx context.Context, pin *models.PinnedInsight) error
	Delete(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error
	// List returns pins newest first with the referenced insight attached.
	// A nil kind lists both kinds.
	List(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error)
}

type pinnedInsightRepository struct{}

// NewPinnedInsightRepository creates a new PinnedInsightRepository.
func NewPinnedInsightRepository() PinnedInsightRepository {
	return &pinnedInsightRepository{}
}

var _ PinnedInsightRepository = (*pinnedInsightRepository)(nil)

func (r *pinnedInsightRepository) Create(ctx context.Context, pin *models.PinnedInsight) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	if pin.ID == uuid.Nil {
		pin.ID = uuid.New()
	}
	pin.PinnedAt = time.Now()

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO graveyard_pinned_insights (id, user_id, insight_type, ai_insight_id, pattern_insight_id, project_id, notes, pinned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pin.ID, pin.UserID, pin.Kind, pin.AIInsightID, pin.PatternInsightID, pin.ProjectID, pin.Notes, pin.PinnedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insight already pinned: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to pin insight: %w", err)
	}
	return nil
}

func (r *pinnedInsightRepository) Delete(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	column := "ai_insight_id"
	if kind == models.PinKindPatternAnalysis {
		column = "pattern_insight_id"
	}

	tag, err := scope.Conn.Exec(ctx,
		`DELETE FROM graveyard_pinned_insights WHERE user_id = $1 AND insight_type = $2 AND `+column+` = $3`,
		userID, kind, insightID)
	if err != nil {
		return fmt.Errorf("failed to unpin insight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pin for %s: %w", insightID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *pinnedInsightRepository) List(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT pin.id, pin.user_id, pin.insight_type, pin.ai_insight_id, pin.pattern_insight_id,
		       pin.project_id, pin.notes, pin.pinned_at, proj.name,
		       ai.insight_type, ai.content, ai.confidence_score, ai.post_mortem_id, ai.created_at,
		       pi.insight_type, pi.insight_text, pi.confidence_score, pi.is_active, pi.created_at
		FROM graveyard_pinned_insights pin
		LEFT JOIN graveyard_projects proj ON proj.id = pin.project_id
		LEFT JOIN graveyard_ai_insights ai ON ai.id = pin.ai_insight_id
		LEFT JOIN graveyard_pattern_insights pi ON pi.id = pin.pattern_insight_id
		WHERE pin.user_id = $1 AND ($2::text IS NULL OR pin.insight_type = $2)
		ORDER BY pin.pinned_at DESC`

	var kindArg *string
	if kind != nil {
		k := string(*kind)
		kindArg = &k
	}

	rows, err := scope.Conn.Query(ctx, query, userID, kindArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned insights: %w", err)
	}
	defer rows.Close()

	var pins []*models.PinnedInsight
	for rows.Next() {
		var (
			pin models.PinnedInsight

			aiType       *models.AIInsightType
			aiContent    *string
			aiConfidence *float64
			aiPostMortem *uuid.UUID
			aiCreatedAt  *time.Time

			piType       *models.PatternInsightType
			piText       *string
			piConfidence *float64
			piActive     *bool
			piCreatedAt  *time.Time
		)
		err := rows.Scan(
			&pin.ID, &pin.UserID, &pin.Kind, &pin.AIInsightID, &pin.PatternInsightID,
			&pin.ProjectID, &pin.Notes, &pin.PinnedAt, &pin.ProjectName,
			&aiType, &aiContent, &aiConfidence, &aiPostMortem, &aiCreatedAt,
			&piType, &piText, &piConfidence, &piActive, &piCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pinned insight: %w", err)
		}

		if pin.AIInsightID != nil && aiType != nil {
			pin.AIInsight = &models.AIInsight{
				ID:              *pin.AIInsightID,
				InsightType:     *aiType,
				Content:         *aiContent,
				ConfidenceScore: *aiConfidence,
				PostMortemID:    *aiPostMortem,
				CreatedAt:       *aiCreatedAt,
			}
			if pin.ProjectID != nil {
				pin.AIInsight.ProjectID = *pin.ProjectID
			}
		}
		if pin.PatternInsightID != nil && piType != nil {
			pin.PatternInsight = &models.PatternInsight{
				ID:              *pin.PatternInsightID,
				UserID:          pin.UserID,
				InsightType:     *piType,
				InsightText:     *piText,
				ConfidenceScore: *piConfidence,
				IsActive:        *piActive,
				CreatedAt:       *piCreatedAt,
			}
		}
		pins = append(pins, &pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pinned insights: %w", err)
	}
	return pins, nil
}
