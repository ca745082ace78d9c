package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

func projectsRoutes(ps *mockProjectService, pms *mockPostMortemService) func(*http.ServeMux, *auth.Middleware) {
	h := NewProjectsHandler(ps, pms, zap.NewNop())
	return func(mux *http.ServeMux, am *auth.Middleware) {
		h.RegisterRoutes(mux, am, passthroughOwner)
	}
}

func TestProjectsHandler_RequiresAuth(t *testing.T) {
	routes := projectsRoutes(&mockProjectService{}, &mockPostMortemService{})

	req := bearerRequest(http.MethodGet, "/api/projects", "")
	req.Header.Del("Authorization")
	rec := routeRequest(routes, uuid.New(), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestProjectsHandler_Create(t *testing.T) {
	userID := uuid.New()
	var got *models.Project
	ps := &mockProjectService{
		createFunc: func(_ context.Context, uid uuid.UUID, p *models.Project) error {
			assert.Equal(t, userID, uid)
			p.ID = uuid.New()
			p.UserID = uid
			got = p
			return nil
		},
	}

	body := `{
		"name": "Chess Clock",
		"description": "  a clock  ",
		"created_at": "2024-01-05T00:00:00Z",
		"death_date": "2024-01-07T00:00:00Z",
		"death_cause": "lost_interest",
		"tech_stack": ["React"]
	}`
	rec := routeRequest(projectsRoutes(ps, &mockPostMortemService{}), userID, bearerRequest(http.MethodPost, "/api/projects", body))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, got)
	assert.Equal(t, "a clock", got.Description)
	assert.Equal(t, models.DeathCauseLostInterest, got.DeathCause)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), got.CreatedAt)

	var resp models.Project
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, got.ID, resp.ID)
	assert.Equal(t, []string{"React"}, resp.TechStack)
}

func TestProjectsHandler_CreateValidation(t *testing.T) {
	called := false
	ps := &mockProjectService{
		createFunc: func(context.Context, uuid.UUID, *models.Project) error {
			called = true
			return nil
		},
	}
	routes := projectsRoutes(ps, &mockPostMortemService{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "missing name",
			body:    `{"death_date":"2024-01-07T00:00:00Z","death_cause":"other"}`,
			wantMsg: "name is required",
		},
		{
			name:    "unknown death cause",
			body:    `{"name":"x","death_date":"2024-01-07T00:00:00Z","death_cause":"boredom"}`,
			wantMsg: "death_cause must be one of",
		},
		{
			name:    "unknown field",
			body:    `{"name":"x","death_date":"2024-01-07T00:00:00Z","death_cause":"other","owner":"me"}`,
			wantMsg: "Invalid request body",
		},
		{
			name:    "bad revival status",
			body:    `{"name":"x","death_date":"2024-01-07T00:00:00Z","death_cause":"other","revival_status":"zombie"}`,
			wantMsg: "revival_status must be one of",
		},
		{
			name:    "not json",
			body:    `name=x`,
			wantMsg: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := routeRequest(routes, uuid.New(), bearerRequest(http.MethodPost, "/api/projects", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "invalid_request", resp["error"])
			assert.Contains(t, resp["message"], tt.wantMsg)
		})
	}
	assert.False(t, called)
}

func TestProjectsHandler_CreateServiceRejects(t *testing.T) {
	ps := &mockProjectService{
		createFunc: func(context.Context, uuid.UUID, *models.Project) error {
			return fmt.Errorf("%w: death_date is before created_at", apperrors.ErrInvalidInput)
		},
	}
	body := `{"name":"x","created_at":"2024-02-01T00:00:00Z","death_date":"2024-01-07T00:00:00Z","death_cause":"other"}`
	rec := routeRequest(projectsRoutes(ps, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodPost, "/api/projects", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "death_date is before created_at")
}

func TestProjectsHandler_ListEmpty(t *testing.T) {
	rec := routeRequest(projectsRoutes(&mockProjectService{}, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodGet, "/api/projects", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"projects":[]}`, rec.Body.String())
}

func TestProjectsHandler_GetNotFound(t *testing.T) {
	projectID := uuid.New()
	ps := &mockProjectService{
		getByIDFunc: func(_ context.Context, _, id uuid.UUID) (*models.Project, error) {
			assert.Equal(t, projectID, id)
			return nil, apperrors.ErrNotFound
		},
	}
	rec := routeRequest(projectsRoutes(ps, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodGet, "/api/projects/"+projectID.String(), ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectsHandler_GetInvalidID(t *testing.T) {
	rec := routeRequest(projectsRoutes(&mockProjectService{}, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodGet, "/api/projects/nope", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_project_id")
}

func TestProjectsHandler_Update(t *testing.T) {
	projectID := uuid.New()
	var got services.ProjectUpdate
	ps := &mockProjectService{
		updateFunc: func(_ context.Context, _, id uuid.UUID, update services.ProjectUpdate) (*models.Project, error) {
			got = update
			return &models.Project{ID: id, RevivalStatus: *update.RevivalStatus}, nil
		},
	}
	body := `{"revival_status":"reviving"}`
	rec := routeRequest(projectsRoutes(ps, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodPut, "/api/projects/"+projectID.String(), body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Epitaph)
	require.NotNil(t, got.RevivalStatus)
	assert.Equal(t, models.RevivalStatusReviving, *got.RevivalStatus)
}

func TestProjectsHandler_UpdateRejectsNonEditableField(t *testing.T) {
	rec := routeRequest(projectsRoutes(&mockProjectService{}, &mockPostMortemService{}), uuid.New(),
		bearerRequest(http.MethodPut, "/api/projects/"+uuid.NewString(), `{"name":"renamed"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectsHandler_Delete(t *testing.T) {
	projectID := uuid.New()
	deleted := uuid.Nil
	ps := &mockProjectService{
		deleteFunc: func(_ context.Context, _, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	rec := routeRequest(projectsRoutes(ps, &mockPostMortemService{}), uuid.New(), bearerRequest(http.MethodDelete, "/api/projects/"+projectID.String(), ""))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, projectID, deleted)
}

func TestProjectsHandler_SavePostMortem(t *testing.T) {
	projectID := uuid.New()
	var saved *models.PostMortem
	pms := &mockPostMortemService{
		saveFunc: func(_ context.Context, _ uuid.UUID, pm *models.PostMortem) error {
			saved = pm
			pm.ID = uuid.New()
			return nil
		},
	}
	body := `{"what_went_wrong":"  I kept rewriting the UI  "}`
	rec := routeRequest(projectsRoutes(&mockProjectService{}, pms), uuid.New(),
		bearerRequest(http.MethodPut, "/api/projects/"+projectID.String()+"/post-mortem", body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, saved)
	assert.Equal(t, projectID, saved.ProjectID)
	assert.Equal(t, "I kept rewriting the UI", saved.WhatWentWrong)
}

func TestProjectsHandler_AnalyzePostMortem(t *testing.T) {
	projectID := uuid.New()

	t.Run("generated", func(t *testing.T) {
		pms := &mockPostMortemService{
			analyzeFunc: func(_ context.Context, _, id uuid.UUID) (*models.PostMortemAnalysisResult, error) {
				return &models.PostMortemAnalysisResult{
					Status: models.AnalysisGenerated,
					Insights: []*models.AIInsight{
						{ID: uuid.New(), ProjectID: id, InsightType: models.AIInsightPatternRecognition, Content: "x"},
					},
				}, nil
			},
		}
		rec := routeRequest(projectsRoutes(&mockProjectService{}, pms), uuid.New(),
			bearerRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/post-mortem/analyze", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.PostMortemAnalysisResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Insights, 1)
	})

	t.Run("completion service down", func(t *testing.T) {
		pms := &mockPostMortemService{
			analyzeFunc: func(context.Context, uuid.UUID, uuid.UUID) (*models.PostMortemAnalysisResult, error) {
				return nil, fmt.Errorf("post-mortem: %w", apperrors.ErrUpstreamFailure)
			},
		}
		rec := routeRequest(projectsRoutes(&mockProjectService{}, pms), uuid.New(),
			bearerRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/post-mortem/analyze", ""))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "upstream_failure")
	})

	t.Run("empty result renders empty list", func(t *testing.T) {
		pms := &mockPostMortemService{
			analyzeFunc: func(context.Context, uuid.UUID, uuid.UUID) (*models.PostMortemAnalysisResult, error) {
				return &models.PostMortemAnalysisResult{Status: models.AnalysisAllFiltered, Rejected: 4}, nil
			},
		}
		rec := routeRequest(projectsRoutes(&mockProjectService{}, pms), uuid.New(),
			bearerRequest(http.MethodPost, "/api/projects/"+projectID.String()+"/post-mortem/analyze", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"insights":[]`)
	})
}
