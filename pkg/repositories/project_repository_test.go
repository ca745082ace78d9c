//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/testhelpers"
)

func setupOwner(t *testing.T) (context.Context, uuid.UUID) {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	userID := uuid.New()
	return testDB.OwnerContext(t, userID), userID
}

func createProject(t *testing.T, ctx context.Context, userID uuid.UUID, name string, created time.Time, lifespan time.Duration) *models.Project {
	t.Helper()
	p := &models.Project{
		UserID:     userID,
		Name:       name,
		CreatedAt:  created,
		DeathDate:  created.Add(lifespan),
		DeathCause: models.DeathCauseLostInterest,
		TechStack:  []string{"React", "Express"},
	}
	require.NoError(t, NewProjectRepository().Create(ctx, p))
	return p
}

func TestProjectRepository_CRUD(t *testing.T) {
	ctx, userID := setupOwner(t)
	repo := NewProjectRepository()

	base := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	second := createProject(t, ctx, userID, "second", base.Add(48*time.Hour), 24*time.Hour)
	first := createProject(t, ctx, userID, "first", base, 24*time.Hour)

	list, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "oldest first")
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, models.RevivalStatusBuried, list[0].RevivalStatus)
	assert.Equal(t, []string{"React", "Express"}, list[0].TechStack)

	first.RevivalStatus = models.RevivalStatusReviving
	first.Epitaph = "Here lies a todo app"
	require.NoError(t, repo.Update(ctx, first))

	got, err := repo.GetByID(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RevivalStatusReviving, got.RevivalStatus)
	assert.Equal(t, "Here lies a todo app", got.Epitaph)

	_, err = repo.GetByID(ctx, uuid.New(), first.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "other users cannot read the project")

	require.NoError(t, repo.Delete(ctx, userID, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, userID, second.ID), apperrors.ErrNotFound)
}

func TestProjectRepository_RejectsDeathBeforeBirth(t *testing.T) {
	ctx, userID := setupOwner(t)

	created := time.Now()
	err := NewProjectRepository().Create(ctx, &models.Project{
		UserID:     userID,
		Name:       "time traveller",
		CreatedAt:  created,
		DeathDate:  created.Add(-time.Hour),
		DeathCause: models.DeathCauseOther,
	})
	assert.Error(t, err)
}

func TestProjectMetadataRepository_EstimatedNeverOverwritesMeasured(t *testing.T) {
	ctx, userID := setupOwner(t)
	repo := NewProjectMetadataRepository()
	p := createProject(t, ctx, userID, "measured", time.Now().Add(-72*time.Hour), time.Hour)

	require.NoError(t, repo.Upsert(ctx, &models.ProjectMetadata{
		ProjectID: p.ID, EstimatedLinesOfCode: 4200, FirstCommitType: models.FirstCommitAPI,
		Provenance: models.ProvenanceMeasured,
	}))
	require.NoError(t, repo.Upsert(ctx, &models.ProjectMetadata{
		ProjectID: p.ID, EstimatedLinesOfCode: 10, FirstCommitType: models.FirstCommitSetup,
		Provenance: models.ProvenanceEstimated,
	}))

	got, err := repo.GetByProjects(ctx, []uuid.UUID{p.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4200, got[p.ID].EstimatedLinesOfCode)
	assert.Equal(t, models.ProvenanceMeasured, got[p.ID].Provenance)
}

func TestPostMortemRepository_Upsert(t *testing.T) {
	ctx, userID := setupOwner(t)
	repo := NewPostMortemRepository()
	p := createProject(t, ctx, userID, "reflected", time.Now().Add(-72*time.Hour), time.Hour)

	pm := &models.PostMortem{ProjectID: p.ID, WhatWentWrong: "auth ate my weekend"}
	require.NoError(t, repo.Upsert(ctx, pm))
	firstID := pm.ID

	again := &models.PostMortem{ProjectID: p.ID, WhatWentWrong: "auth ate two weekends", LessonsLearned: "use a provider"}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, firstID, again.ID, "one post-mortem per project")

	got, err := repo.GetByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth ate two weekends", got.WhatWentWrong)

	byProject, err := repo.GetByProjects(ctx, []uuid.UUID{p.ID})
	require.NoError(t, err)
	assert.Contains(t, byProject, p.ID)

	_, err = repo.GetByProject(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
