package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// AIInsightRepository provides data access for post-mortem analysis sections.
type AIInsightRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.AIInsight, error)
	// GetForUser returns the insight only if its project belongs to userID.
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.AIInsight, error)
	// ReplaceForPostMortem deletes every insight of the post-mortem and inserts
	// insights in one transaction, skipping and reporting rows that fail.
	ReplaceForPostMortem(ctx context.Context, postMortemID uuid.UUID, insights []*models.AIInsight) ([]*models.AIInsight, []models.RowFailure, error)
}

type aiInsightRepository struct{}

// NewAIInsightRepository creates a new AIInsightRepository.
func NewAIInsightRepository() AIInsightRepository {
	return &aiInsightRepository{}
}

var _ AIInsightRepository = (*aiInsightRepository)(nil)

const aiInsightColumns = `i.id, i.project_id, i.post_mortem_id, i.insight_type, i.content, i.confidence_score, i.created_at`

func (r *aiInsightRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.AIInsight, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + aiInsightColumns + `
		FROM graveyard_ai_insights i
		WHERE i.project_id = $1
		ORDER BY i.created_at ASC, array_position(
			ARRAY['pattern_recognition', 'coaching', 'questions', 'strategies'], i.insight_type)`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai insights: %w", err)
	}
	defer rows.Close()

	var insights []*models.AIInsight
	for rows.Next() {
		in, err := scanAIInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai insight: %w", err)
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ai insights: %w", err)
	}
	return insights, nil
}

func (r *aiInsightRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.AIInsight, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + aiInsightColumns + `
		FROM graveyard_ai_insights i
		JOIN graveyard_projects p ON p.id = i.project_id
		WHERE i.id = $1 AND p.user_id = $2`

	in, err := scanAIInsight(scope.Conn.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, notFound("ai insight", err)
	}
	return in, nil
}

func (r *aiInsightRepository) ReplaceForPostMortem(ctx context.Context, postMortemID uuid.UUID, insights []*models.AIInsight) ([]*models.AIInsight, []models.RowFailure, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, nil, err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if _, err := tx.Exec(ctx, `DELETE FROM graveyard_ai_insights WHERE post_mortem_id = $1`, postMortemID); err != nil {
		return nil, nil, fmt.Errorf("failed to delete ai insights: %w", err)
	}

	now := time.Now()
	written, failures := insertEach(ctx, tx, "ai_insight", insights,
		func(in *models.AIInsight) string { return string(in.InsightType) },
		func(q pgx.Tx, in *models.AIInsight) error {
			if in.ID == uuid.Nil {
				in.ID = uuid.New()
			}
			in.PostMortemID = postMortemID
			in.CreatedAt = now

			_, err := q.Exec(ctx, `
				INSERT INTO graveyard_ai_insights (id, project_id, post_mortem_id, insight_type, content, confidence_score, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				in.ID, in.ProjectID, in.PostMortemID, in.InsightType, in.Content, in.ConfidenceScore, in.CreatedAt,
			)
			return err
		})

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit ai insights: %w", err)
	}
	return written, failures, nil
}

func scanAIInsight(row pgx.Row) (*models.AIInsight, error) {
	var in models.AIInsight
	err := row.Scan(&in.ID, &in.ProjectID, &in.PostMortemID, &in.InsightType, &in.Content, &in.ConfidenceScore, &in.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &in, nil
}
