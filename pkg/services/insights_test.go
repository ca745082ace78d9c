package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

type insightFixture struct {
	store     *memStore
	service   InsightService
	userID    uuid.UUID
	pattern   *models.PatternInsight
	aiInsight *models.AIInsight
}

func newInsightFixture(t *testing.T) *insightFixture {
	t.Helper()
	store := newMemStore()
	userID := uuid.New()
	project := addProject(store, userID, "Recipe App", day(2024, 1, 6), 2, models.DeathCauseLostInterest)

	pattern := &models.PatternInsight{ID: uuid.New(), UserID: userID, InsightText: specificInsight, IsActive: true}
	aiInsight := &models.AIInsight{ID: uuid.New(), ProjectID: project.ID, PostMortemID: uuid.New(), InsightType: models.AIInsightCoaching}
	store.insights = append(store.insights, pattern)
	store.aiInsights = append(store.aiInsights, aiInsight)

	service := NewInsightService(memPatternInsightRepo{s: store}, memAIInsightRepo{s: store}, memPinRepo{s: store}, zap.NewNop())
	return &insightFixture{store: store, service: service, userID: userID, pattern: pattern, aiInsight: aiInsight}
}

func TestInsightService_SetFeedback(t *testing.T) {
	f := newInsightFixture(t)

	require.NoError(t, f.service.SetFeedback(context.Background(), f.userID, f.pattern.ID, models.FeedbackHelpful))
	require.NotNil(t, f.pattern.Feedback)
	assert.Equal(t, models.FeedbackHelpful, *f.pattern.Feedback)

	err := f.service.SetFeedback(context.Background(), f.userID, f.pattern.ID, "meh")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = f.service.SetFeedback(context.Background(), uuid.New(), f.pattern.ID, models.FeedbackIrrelevant)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInsightService_PinBothKinds(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()

	pin, err := f.service.Pin(ctx, f.userID, models.PinKindPatternAnalysis, f.pattern.ID, "  keep this one  ")
	require.NoError(t, err)
	require.NotNil(t, pin.PatternInsightID)
	assert.Equal(t, f.pattern.ID, *pin.PatternInsightID)
	assert.Nil(t, pin.AIInsightID)
	require.NotNil(t, pin.Notes)
	assert.Equal(t, "keep this one", *pin.Notes)

	pin, err = f.service.Pin(ctx, f.userID, models.PinKindProjectSpecific, f.aiInsight.ID, "")
	require.NoError(t, err)
	require.NotNil(t, pin.AIInsightID)
	assert.Equal(t, f.aiInsight.ProjectID, *pin.ProjectID)
	assert.Nil(t, pin.Notes)

	all, err := f.service.ListPins(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	kind := models.PinKindProjectSpecific
	onlyProject, err := f.service.ListPins(ctx, f.userID, &kind)
	require.NoError(t, err)
	require.Len(t, onlyProject, 1)
	assert.Equal(t, f.aiInsight.ID, onlyProject[0].InsightID())
}

func TestInsightService_PinErrors(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()

	_, err := f.service.Pin(ctx, f.userID, models.PinKindPatternAnalysis, f.pattern.ID, "")
	require.NoError(t, err)

	_, err = f.service.Pin(ctx, f.userID, models.PinKindPatternAnalysis, f.pattern.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.service.Pin(ctx, uuid.New(), models.PinKindProjectSpecific, f.aiInsight.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "pins require ownership of the insight")

	_, err = f.service.Pin(ctx, f.userID, "favourite", f.pattern.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	bad := models.PinKind("favourite")
	_, err = f.service.ListPins(ctx, f.userID, &bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestInsightService_Unpin(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()

	_, err := f.service.Pin(ctx, f.userID, models.PinKindProjectSpecific, f.aiInsight.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.service.Unpin(ctx, f.userID, models.PinKindProjectSpecific, f.aiInsight.ID))
	assert.ErrorIs(t, f.service.Unpin(ctx, f.userID, models.PinKindProjectSpecific, f.aiInsight.ID), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.service.Unpin(ctx, f.userID, "other", f.aiInsight.ID), apperrors.ErrInvalidInput)
}
