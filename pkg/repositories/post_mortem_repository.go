package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// PostMortemRepository provides data access for project reflections.
type PostMortemRepository interface {
	// Upsert creates or replaces the reflection of pm.ProjectID.
	Upsert(ctx context.Context, pm *models.PostMortem) error
	GetByProject(ctx context.Context, projectID uuid.UUID) (*models.PostMortem, error)
	// GetByProjects returns reflections keyed by project id.
	GetByProjects(ctx context.Context, projectIDs []uuid.UUID) (map[uuid.UUID]*models.PostMortem, error)
}

type postMortemRepository struct{}

// NewPostMortemRepository creates a new PostMortemRepository.
func NewPostMortemRepository() PostMortemRepository {
	return &postMortemRepository{}
}

var _ PostMortemRepository = (*postMortemRepository)(nil)

const postMortemColumns = `id, project_id, what_problem, what_went_wrong, lessons_learned, created_at, updated_at`

func (r *postMortemRepository) Upsert(ctx context.Context, pm *models.PostMortem) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO graveyard_post_mortems (id, project_id, what_problem, what_went_wrong, lessons_learned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (project_id) DO UPDATE SET
			what_problem = EXCLUDED.what_problem,
			what_went_wrong = EXCLUDED.what_went_wrong,
			lessons_learned = EXCLUDED.lessons_learned,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		pm.ID, pm.ProjectID, pm.WhatProblem, pm.WhatWentWrong, pm.LessonsLearned, now,
	).Scan(&pm.ID, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert post-mortem: %w", err)
	}
	return nil
}

func (r *postMortemRepository) GetByProject(ctx context.Context, projectID uuid.UUID) (*models.PostMortem, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + postMortemColumns + ` FROM graveyard_post_mortems WHERE project_id = $1`
	pm, err := scanPostMortem(scope.Conn.QueryRow(ctx, query, projectID))
	if err != nil {
		return nil, notFound("post-mortem", err)
	}
	return pm, nil
}

func (r *postMortemRepository) GetByProjects(ctx context.Context, projectIDs []uuid.UUID) (map[uuid.UUID]*models.PostMortem, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*models.PostMortem, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + postMortemColumns + ` FROM graveyard_post_mortems WHERE project_id = ANY($1)`
	rows, err := scope.Conn.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query post-mortems: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pm, err := scanPostMortem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post-mortem: %w", err)
		}
		result[pm.ProjectID] = pm
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post-mortems: %w", err)
	}
	return result, nil
}

func scanPostMortem(row pgx.Row) (*models.PostMortem, error) {
	var pm models.PostMortem
	err := row.Scan(&pm.ID, &pm.ProjectID, &pm.WhatProblem, &pm.WhatWentWrong, &pm.LessonsLearned, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pm, nil
}
