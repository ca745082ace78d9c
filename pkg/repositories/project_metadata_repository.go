package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// ProjectMetadataRepository provides data access for per-project engineering facts.
type ProjectMetadataRepository interface {
	// GetByProjects returns the stored metadata keyed by project id.
	// Projects without a row are absent from the map.
	GetByProjects(ctx context.Context, projectIDs []uuid.UUID) (map[uuid.UUID]*models.ProjectMetadata, error)
	Upsert(ctx context.Context, md *models.ProjectMetadata) error
}

type projectMetadataRepository struct{}

// NewProjectMetadataRepository creates a new ProjectMetadataRepository.
func NewProjectMetadataRepository() ProjectMetadataRepository {
	return &projectMetadataRepository{}
}

var _ ProjectMetadataRepository = (*projectMetadataRepository)(nil)

func (r *projectMetadataRepository) GetByProjects(ctx context.Context, projectIDs []uuid.UUID) (map[uuid.UUID]*models.ProjectMetadata, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*models.ProjectMetadata, len(projectIDs))
	if len(projectIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT project_id, total_days_active, estimated_lines_of_code, estimated_commit_count,
		       libraries_count, files_count, first_commit_type, has_readme, has_tests,
		       has_documentation, provenance, created_at, updated_at
		FROM graveyard_project_metadata
		WHERE project_id = ANY($1)`

	rows, err := scope.Conn.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query project metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		md, err := scanProjectMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project metadata: %w", err)
		}
		result[md.ProjectID] = md
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project metadata: %w", err)
	}
	return result, nil
}

// Upsert inserts or replaces the metadata row. A measured row is never
// overwritten by an estimated one.
func (r *projectMetadataRepository) Upsert(ctx context.Context, md *models.ProjectMetadata) error {
	scope, err := ownerScope(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	if md.CreatedAt.IsZero() {
		md.CreatedAt = now
	}
	md.UpdatedAt = now

	query := `
		INSERT INTO graveyard_project_metadata (
			project_id, total_days_active, estimated_lines_of_code, estimated_commit_count,
			libraries_count, files_count, first_commit_type, has_readme, has_tests,
			has_documentation, provenance, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (project_id) DO UPDATE SET
			total_days_active = EXCLUDED.total_days_active,
			estimated_lines_of_code = EXCLUDED.estimated_lines_of_code,
			estimated_commit_count = EXCLUDED.estimated_commit_count,
			libraries_count = EXCLUDED.libraries_count,
			files_count = EXCLUDED.files_count,
			first_commit_type = EXCLUDED.first_commit_type,
			has_readme = EXCLUDED.has_readme,
			has_tests = EXCLUDED.has_tests,
			has_documentation = EXCLUDED.has_documentation,
			provenance = EXCLUDED.provenance,
			updated_at = EXCLUDED.updated_at
		WHERE graveyard_project_metadata.provenance = 'estimated' OR EXCLUDED.provenance = 'measured'`

	_, err = scope.Conn.Exec(ctx, query,
		md.ProjectID, md.TotalDaysActive, md.EstimatedLinesOfCode, md.EstimatedCommitCount,
		md.LibrariesCount, md.FilesCount, md.FirstCommitType, md.HasReadme, md.HasTests,
		md.HasDocumentation, md.Provenance, md.CreatedAt, md.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project metadata: %w", err)
	}
	return nil
}

func scanProjectMetadata(row pgx.Row) (*models.ProjectMetadata, error) {
	var md models.ProjectMetadata
	err := row.Scan(
		&md.ProjectID, &md.TotalDaysActive, &md.EstimatedLinesOfCode, &md.EstimatedCommitCount,
		&md.LibrariesCount, &md.FilesCount, &md.FirstCommitType, &md.HasReadme, &md.HasTests,
		&md.HasDocumentation, &md.Provenance, &md.CreatedAt, &md.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &md, nil
}
