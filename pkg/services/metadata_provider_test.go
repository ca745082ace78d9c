package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

func TestMetadataProvider_EstimatesMissing(t *testing.T) {
	store := newMemStore()
	userID := uuid.New()
	measuredProject := addProject(store, userID, "Measured", day(2024, 1, 1), 20, models.DeathCauseOther)
	missing := addProject(store, userID, "Missing", day(2024, 2, 1), 20, models.DeathCauseOther, "Go", "htmx")

	measured := &models.ProjectMetadata{ProjectID: measuredProject.ID, EstimatedLinesOfCode: 4200, Provenance: models.ProvenanceMeasured}
	store.metadata[measuredProject.ID] = measured

	provider := NewMetadataProvider(&memMetadataRepo{s: store}, zap.NewNop())
	got, failures, err := provider.MetadataFor(context.Background(), store.projects)
	require.NoError(t, err)
	assert.Empty(t, failures)

	require.Len(t, got, 2)
	assert.Same(t, measured, got[measuredProject.ID])
	assert.True(t, got[missing.ID].IsEstimated())
	assert.Equal(t, 20, got[missing.ID].TotalDaysActive)

	// The estimate is stored and stable across calls.
	require.Contains(t, store.metadata, missing.ID)
	again, _, err := provider.MetadataFor(context.Background(), store.projects)
	require.NoError(t, err)
	assert.Equal(t, got[missing.ID].EstimatedLinesOfCode, again[missing.ID].EstimatedLinesOfCode)
}

func TestMetadataProvider_UpsertFailureIsBestEffort(t *testing.T) {
	store := newMemStore()
	p := addProject(store, uuid.New(), "Unsaved", day(2024, 1, 1), 5, models.DeathCauseOther)

	provider := NewMetadataProvider(&memMetadataRepo{s: store, upsertErr: errors.New("disk full")}, zap.NewNop())
	got, failures, err := provider.MetadataFor(context.Background(), store.projects)
	require.NoError(t, err)

	require.Contains(t, got, p.ID)
	assert.Empty(t, store.metadata)
	require.Len(t, failures, 1)
	assert.Equal(t, models.RowFailure{Kind: "project_metadata", Key: p.ID.String(), Error: "disk full"}, failures[0])
}
