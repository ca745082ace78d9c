package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

func patternsRoutes(as *mockPatternAnalysisService, ds *mockDashboardService) func(*http.ServeMux, *auth.Middleware) {
	h := NewPatternsHandler(as, ds, zap.NewNop())
	return func(mux *http.ServeMux, am *auth.Middleware) {
		h.RegisterRoutes(mux, am, passthroughOwner)
	}
}

func TestPatternsHandler_AnalyzeNeedsMoreData(t *testing.T) {
	userID := uuid.New()
	as := &mockPatternAnalysisService{
		runFullAnalysisFunc: func(_ context.Context, uid uuid.UUID) (*models.AnalysisResult, error) {
			assert.Equal(t, userID, uid)
			return &models.AnalysisResult{
				Status:           models.AnalysisNeedsMoreData,
				Reason:           "not_enough_projects",
				NeedsMoreData:    true,
				ProjectsAnalyzed: 1,
				Findings:         []models.PatternFinding{},
				Insights:         []*models.PatternInsight{},
			}, nil
		},
	}
	rec := routeRequest(patternsRoutes(as, &mockDashboardService{}), userID, bearerRequest(http.MethodPost, "/api/patterns/analyze", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AnalysisResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.NeedsMoreData)
	assert.Equal(t, "not_enough_projects", resp.Reason)
}

func TestPatternsHandler_AnalyzeFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"malformed completion", fmt.Errorf("coaching: %w", apperrors.ErrMalformedResponse), http.StatusBadGateway},
		{"run already in progress elsewhere", fmt.Errorf("pattern analysis: %w", apperrors.ErrConflict), http.StatusConflict},
		{"storage failure", fmt.Errorf("replace patterns: %w", apperrors.ErrPersistence), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := &mockPatternAnalysisService{
				runFullAnalysisFunc: func(context.Context, uuid.UUID) (*models.AnalysisResult, error) {
					return nil, tt.err
				},
			}
			rec := routeRequest(patternsRoutes(as, &mockDashboardService{}), uuid.New(), bearerRequest(http.MethodPost, "/api/patterns/analyze", ""))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPatternsHandler_Coach(t *testing.T) {
	as := &mockPatternAnalysisService{
		runCoachingFunc: func(context.Context, uuid.UUID) (*models.AnalysisResult, error) {
			return &models.AnalysisResult{
				Status:        models.AnalysisNeedsMoreData,
				Reason:        "needs_pattern_detection",
				NeedsMoreData: true,
			}, nil
		},
	}
	rec := routeRequest(patternsRoutes(as, &mockDashboardService{}), uuid.New(), bearerRequest(http.MethodPost, "/api/patterns/coach", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "needs_pattern_detection")
}

func TestPatternsHandler_Dashboard(t *testing.T) {
	ds := &mockDashboardService{
		getFunc: func(context.Context, uuid.UUID) (*models.Dashboard, error) {
			return &models.Dashboard{
				Patterns:      []*models.UserPattern{},
				Insights:      []*models.PatternInsight{},
				History:       []*models.LearningMetricsSnapshot{},
				ProjectCount:  1,
				NeedsMoreData: true,
			}, nil
		},
	}
	rec := routeRequest(patternsRoutes(&mockPatternAnalysisService{}, ds), uuid.New(), bearerRequest(http.MethodGet, "/api/patterns/dashboard", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["needs_more_data"])
	assert.Equal(t, float64(1), resp["project_count"])
	assert.NotContains(t, resp, "learning_velocity")
}

func TestPatternsHandler_Clear(t *testing.T) {
	as := &mockPatternAnalysisService{
		clearInsightsFunc: func(context.Context, uuid.UUID) (*models.ClearResult, error) {
			return &models.ClearResult{PatternsCleared: 3, InsightsCleared: 2}, nil
		},
	}
	rec := routeRequest(patternsRoutes(as, &mockDashboardService{}), uuid.New(), bearerRequest(http.MethodPost, "/api/patterns/clear", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"patterns_cleared":3,"insights_cleared":2}`, rec.Body.String())
}

func TestPatternsHandler_MethodNotAllowed(t *testing.T) {
	rec := routeRequest(patternsRoutes(&mockPatternAnalysisService{}, &mockDashboardService{}), uuid.New(), bearerRequest(http.MethodGet, "/api/patterns/analyze", ""))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
