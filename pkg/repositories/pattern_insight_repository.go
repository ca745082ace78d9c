package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// PatternInsightRepository provides data access for coaching insights.
type PatternInsightRepository interface {
	// ListActive returns live insights, most confident first. limit <= 0 means all.
	ListActive(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PatternInsight, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.PatternInsight, error)
	// ReplaceActive deactivates every live insight and inserts insights in one
	// transaction, skipping and reporting rows that fail.
	ReplaceActive(ctx context.Context, userID uuid.UUID, insights []*models.PatternInsight) ([]*models.PatternInsight, []models.RowFailure, error)
	DeactivateAll(ctx context.Context, userID uuid.UUID) (int64, error)
	SetFeedback(ctx context.Context, userID, id uuid.UUID, feedback models.InsightFeedback) error
}

type patternInsightRepository struct{}

// NewPatternInsightRepository creates a new PatternInsightRepository.
func NewPatternInsightRepository() PatternInsightRepository {
	return &patternInsightRepository{}
}

var _ PatternInsightRepository = (*patternInsightRepository)(nil)

const patternInsightColumns = `id, user_id, insight_text, insight_type, confidence_score, projects_analyzed,
		       related_pattern_ids, is_active, feedback, created_at`

func (r *patternInsightRepository) ListActive(ctx context.Context, userID uuid.UUID, limit int) ([]*models.PatternInsight, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + patternInsightColumns + `
		FROM graveyard_pattern_insights
		WHERE user_id = $1 AND is_active
		ORDER BY confidence_score DESC, created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.PatternInsight
	for rows.Next() {
		in, err := scanPatternInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern insight: %w", err)
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern insights: %w", err)
	}
	return insights, nil
}

func (r *patternInsightRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.PatternInsight, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + patternInsightColumns + ` FROM graveyard_pattern_insights WHERE user_id = $1 AND id = $2`
	in, err := scanPatternInsight(scope.Conn.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, notFound("pattern insight", err)
	}
	return in, nil
}

func (r *patternInsightRepository) ReplaceActive(ctx context.Context, userID uuid.UUID, insights []*models.PatternInsight) ([]*models.PatternInsight, []models.RowFailure, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, nil, err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := lockUserRows(ctx, tx, "graveyard_pattern_insights", userID); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE graveyard_pattern_insights SET is_active = false WHERE user_id = $1 AND is_active`, userID); err != nil {
		return nil, nil, fmt.Errorf("failed to deactivate pattern insights: %w", err)
	}

	now := time.Now()
	written, failures := insertEach(ctx, tx, "pattern_insight", insights,
		func(in *models.PatternInsight) string { return string(in.InsightType) },
		func(q pgx.Tx, in *models.PatternInsight) error {
			if in.ID == uuid.Nil {
				in.ID = uuid.New()
			}
			in.UserID = userID
			in.IsActive = true
			in.CreatedAt = now
			if in.RelatedPatternIDs == nil {
				in.RelatedPatternIDs = []uuid.UUID{}
			}

			_, err := q.Exec(ctx, `
				INSERT INTO graveyard_pattern_insights (
					id, user_id, insight_text, insight_type, confidence_score, projects_analyzed,
					related_pattern_ids, is_active, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)`,
				in.ID, in.UserID, in.InsightText, in.InsightType, in.ConfidenceScore, in.ProjectsAnalyzed,
				in.RelatedPatternIDs, in.CreatedAt,
			)
			return err
		})

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit pattern insights: %w", err)
	}
	return written, failures, nil
}

func (r *patternInsightRepository) DeactivateAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := scope.Conn.Exec(ctx, `UPDATE graveyard_pattern_insights SET is_active = false WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate pattern insights: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *patternInsightRepository) SetFeedback(ctx context.Context, userID, id uuid.UUID, feedback models.InsightFeedback) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, `UPDATE graveyard_pattern_insights SET feedback = $3 WHERE user_id = $1 AND id = $2`, userID, id, feedback)
	if err != nil {
		return fmt.Errorf("failed to set insight feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pattern insight %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanPatternInsight(row pgx.Row) (*models.PatternInsight, error) {
	var in models.PatternInsight
	err := row.Scan(
		&in.ID, &in.UserID, &in.InsightText, &in.InsightType, &in.ConfidenceScore, &in.ProjectsAnalyzed,
		&in.RelatedPatternIDs, &in.IsActive, &in.Feedback, &in.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}
