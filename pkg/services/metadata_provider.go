package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/patterns"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// MetadataProvider supplies engineering metadata for a set of projects.
// Every returned entry carries its provenance. Estimates that could not be
// stored are still returned and reported as row failures.
type MetadataProvider interface {
	MetadataFor(ctx context.Context, projects []*models.Project) (patterns.MetadataByProject, []models.RowFailure, error)
}

// storedMetadataProvider reads measured or previously estimated metadata and
// estimates, then stores, whatever is missing.
type storedMetadataProvider struct {
	repo   repositories.ProjectMetadataRepository
	logger *zap.Logger
}

// NewMetadataProvider creates a MetadataProvider backed by the metadata table.
func NewMetadataProvider(repo repositories.ProjectMetadataRepository, logger *zap.Logger) MetadataProvider {
	return &storedMetadataProvider{
		repo:   repo,
		logger: logger.Named("metadata-provider"),
	}
}

var _ MetadataProvider = (*storedMetadataProvider)(nil)

func (p *storedMetadataProvider) MetadataFor(ctx context.Context, projects []*models.Project) (patterns.MetadataByProject, []models.RowFailure, error) {
	ids := make([]uuid.UUID, len(projects))
	for i, proj := range projects {
		ids[i] = proj.ID
	}

	stored, err := p.repo.GetByProjects(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load project metadata: %w", err)
	}

	out := make(patterns.MetadataByProject, len(projects))
	estimated := 0
	var failures []models.RowFailure
	for _, proj := range projects {
		if md, ok := stored[proj.ID]; ok {
			out[proj.ID] = md
			continue
		}

		md := patterns.EstimateMetadata(proj)
		out[proj.ID] = md
		estimated++

		// The estimate is deterministic, so a lost write only costs a recompute.
		if err := p.repo.Upsert(ctx, md); err != nil {
			metrics.RecordFailedWrite("project_metadata")
			p.logger.Warn("Failed to store estimated metadata",
				zap.String("project_id", proj.ID.String()),
				zap.Error(err))
			failures = append(failures, models.RowFailure{Kind: "project_metadata", Key: proj.ID.String(), Error: err.Error()})
		}
	}

	if estimated > 0 {
		p.logger.Debug("Estimated missing project metadata",
			zap.Int("estimated", estimated),
			zap.Int("total", len(projects)))
	}
	return out, failures, nil
}
