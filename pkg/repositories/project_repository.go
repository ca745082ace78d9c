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

// ProjectRepository provides data access for buried projects.
type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Project, error)
	// ListByUser returns every project of the user, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type projectRepository struct{}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

var _ ProjectRepository = (*projectRepository)(nil)

const projectColumns = `id, user_id, name, description, created_at, death_date, death_cause,
		       tech_stack, epitaph, revival_status, updated_at`

func (r *projectRepository) Create(ctx context.Context, p *models.Project) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.RevivalStatus == "" {
		p.RevivalStatus = models.RevivalStatusBuried
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO graveyard_projects (
			id, user_id, name, description, created_at, death_date, death_cause,
			tech_stack, epitaph, revival_status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = scope.Conn.Exec(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.CreatedAt, p.DeathDate, p.DeathCause,
		p.TechStack, p.Epitaph, p.RevivalStatus, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Project, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + `
		FROM graveyard_projects
		WHERE user_id = $1 AND id = $2`

	p, err := scanProject(scope.Conn.QueryRow(ctx, query, userID, id))
	if err != nil {
		return nil, notFound("project", err)
	}
	return p, nil
}

func (r *projectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + `
		FROM graveyard_projects
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Update writes the editable fields. Core facts (dates, cause, stack) are
// immutable once a project is buried.
func (r *projectRepository) Update(ctx context.Context, p *models.Project) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	query := `
		UPDATE graveyard_projects
		SET description = $3, epitaph = $4, revival_status = $5, updated_at = $6
		WHERE user_id = $1 AND id = $2`

	tag, err := scope.Conn.Exec(ctx, query, p.UserID, p.ID, p.Description, p.Epitaph, p.RevivalStatus, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", p.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *projectRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM graveyard_projects WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.DeathDate, &p.DeathCause,
		&p.TechStack, &p.Epitaph, &p.RevivalStatus, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
