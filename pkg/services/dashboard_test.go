package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

func newTestDashboard(store *memStore, insightLimit int) DashboardService {
	return NewDashboardService(
		memProjectRepo{s: store},
		memPatternRepo{s: store},
		memPatternInsightRepo{s: store},
		&memMetricsRepo{s: store},
		insightLimit,
		zap.NewNop(),
	)
}

func TestDashboardService_Empty(t *testing.T) {
	d, err := newTestDashboard(newMemStore(), 0).Get(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.True(t, d.NeedsMoreData)
	assert.Nil(t, d.Velocity)
	assert.NotNil(t, d.Patterns)
	assert.NotNil(t, d.Insights)
	assert.NotNil(t, d.History)
}

func TestDashboardService_Populated(t *testing.T) {
	store := newMemStore()
	userID := uuid.New()
	weekendHistory(store, userID)
	store.patterns = append(store.patterns,
		&models.UserPattern{ID: uuid.New(), UserID: userID, PatternName: models.PatternWeekendWarrior, ConfidenceScore: 0.8, IsActive: true},
		&models.UserPattern{ID: uuid.New(), UserID: userID, PatternName: models.PatternSerialStarter, ConfidenceScore: 0.7, IsActive: false},
	)
	for i := range 4 {
		store.insights = append(store.insights, &models.PatternInsight{
			ID: uuid.New(), UserID: userID, IsActive: true, ConfidenceScore: 0.5 + float64(i)/10,
		})
	}
	for range 12 {
		store.snapshots = append(store.snapshots, &models.LearningMetricsSnapshot{ID: uuid.New(), UserID: userID})
	}

	d, err := newTestDashboard(store, 3).Get(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, d.NeedsMoreData)
	assert.Equal(t, 3, d.ProjectCount)
	require.Len(t, d.Patterns, 1)
	assert.Equal(t, models.PatternWeekendWarrior, d.Patterns[0].PatternName)
	require.Len(t, d.Insights, 3)
	assert.InDelta(t, 0.8, d.Insights[0].ConfidenceScore, 0.001)
	assert.Len(t, d.History, 10)
	assert.NotNil(t, d.Velocity)
}
