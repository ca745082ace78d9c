package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// LearningMetricsRepository stores the learning velocity recorded by each analysis.
type LearningMetricsRepository interface {
	Save(ctx context.Context, snapshot *models.LearningMetricsSnapshot) error
	// ListRecent returns the newest snapshots first.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LearningMetricsSnapshot, error)
}

type learningMetricsRepository struct{}

// NewLearningMetricsRepository creates a new LearningMetricsRepository.
func NewLearningMetricsRepository() LearningMetricsRepository {
	return &learningMetricsRepository{}
}

var _ LearningMetricsRepository = (*learningMetricsRepository)(nil)

func (r *learningMetricsRepository) Save(ctx context.Context, s *models.LearningMetricsSnapshot) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO graveyard_user_learning_metrics (
			id, user_id, avg_project_lifespan_trend, scope_management_score,
			technology_consistency_score, completion_rate_trend, projects_analyzed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.Velocity.LifespanTrend, s.Velocity.ScopeManagementScore,
		s.Velocity.TechnologyConsistency, s.Velocity.CompletionRateTrend, s.ProjectsAnalyzed, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save learning metrics: %w", err)
	}
	return nil
}

func (r *learningMetricsRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LearningMetricsSnapshot, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, user_id, avg_project_lifespan_trend, scope_management_score,
		       technology_consistency_score, completion_rate_trend, projects_analyzed, created_at
		FROM graveyard_user_learning_metrics
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning metrics: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.LearningMetricsSnapshot
	for rows.Next() {
		var s models.LearningMetricsSnapshot
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Velocity.LifespanTrend, &s.Velocity.ScopeManagementScore,
			&s.Velocity.TechnologyConsistency, &s.Velocity.CompletionRateTrend, &s.ProjectsAnalyzed, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning metrics: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning metrics: %w", err)
	}
	return snapshots, nil
}
