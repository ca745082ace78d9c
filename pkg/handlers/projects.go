package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

// OwnerMiddleware wraps a handler with an owner-scoped database connection.
type OwnerMiddleware func(http.HandlerFunc) http.HandlerFunc

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Description   string     `json:"description" validate:"max=5000"`
	CreatedAt     *time.Time `json:"created_at"`
	DeathDate     time.Time  `json:"death_date" validate:"required"`
	DeathCause    string     `json:"death_cause" validate:"required,oneof=lost_interest over_scoped better_solution_existed technical_roadblock life_got_in_way other"`
	TechStack     []string   `json:"tech_stack" validate:"max=50,dive,required,max=100"`
	Epitaph       string     `json:"epitaph" validate:"max=500"`
	RevivalStatus string     `json:"revival_status" validate:"omitempty,oneof=buried reviving revived"`
}

// UpdateProjectRequest is the body of PUT /api/projects/{pid}.
// Only the editable fields are accepted.
type UpdateProjectRequest struct {
	Description   *string `json:"description" validate:"omitnil,max=5000"`
	Epitaph       *string `json:"epitaph" validate:"omitnil,max=500"`
	RevivalStatus *string `json:"revival_status" validate:"omitnil,oneof=buried reviving revived"`
}

// PostMortemRequest is the body of PUT /api/projects/{pid}/post-mortem.
type PostMortemRequest struct {
	WhatProblem    string `json:"what_problem" validate:"max=10000"`
	WhatWentWrong  string `json:"what_went_wrong" validate:"max=10000"`
	LessonsLearned string `json:"lessons_learned" validate:"max=10000"`
}

// ProjectsHandler serves projects, their post-mortems and post-mortem insights.
type ProjectsHandler struct {
	projectService    services.ProjectService
	postMortemService services.PostMortemService
	logger            *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, postMortemService services.PostMortemService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService:    projectService,
		postMortemService: postMortemService,
		logger:            logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, ownerMiddleware OwnerMiddleware) {
	route := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(ownerMiddleware(next))
	}

	mux.HandleFunc("POST /api/projects", route(h.Create))
	mux.HandleFunc("GET /api/projects", route(h.List))
	mux.HandleFunc("GET /api/projects/{pid}", route(h.Get))
	mux.HandleFunc("PUT /api/projects/{pid}", route(h.Update))
	mux.HandleFunc("DELETE /api/projects/{pid}", route(h.Delete))

	mux.HandleFunc("PUT /api/projects/{pid}/post-mortem", route(h.SavePostMortem))
	mux.HandleFunc("GET /api/projects/{pid}/post-mortem", route(h.GetPostMortem))
	mux.HandleFunc("POST /api/projects/{pid}/post-mortem/analyze", route(h.AnalyzePostMortem))
	mux.HandleFunc("GET /api/projects/{pid}/insights", route(h.ListInsights))
}

// Create handles POST /api/projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	project := &models.Project{
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		DeathDate:     req.DeathDate,
		DeathCause:    models.DeathCause(req.DeathCause),
		TechStack:     req.TechStack,
		Epitaph:       strings.TrimSpace(req.Epitaph),
		RevivalStatus: models.RevivalStatus(req.RevivalStatus),
	}
	if req.CreatedAt != nil {
		project.CreatedAt = *req.CreatedAt
	}
	if project.TechStack == nil {
		project.TechStack = []string{}
	}

	if err := h.projectService.Create(r.Context(), userID, project); err != nil {
		writeServiceError(w, err, "Failed to create project", h.logger)
		return
	}
	writeResult(w, http.StatusCreated, project, h.logger)
}

// List handles GET /api/projects
// Projects are returned oldest first.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projectService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to list projects", h.logger)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeResult(w, http.StatusOK, map[string]any{"projects": projects}, h.logger)
}

// Get handles GET /api/projects/{pid}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Failed to get project", h.logger)
		return
	}
	writeResult(w, http.StatusOK, project, h.logger)
}

// Update handles PUT /api/projects/{pid}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	update := services.ProjectUpdate{
		Description: req.Description,
		Epitaph:     req.Epitaph,
	}
	if req.RevivalStatus != nil {
		status := models.RevivalStatus(*req.RevivalStatus)
		update.RevivalStatus = &status
	}

	project, err := h.projectService.Update(r.Context(), userID, projectID, update)
	if err != nil {
		writeServiceError(w, err, "Failed to update project", h.logger)
		return
	}
	writeResult(w, http.StatusOK, project, h.logger)
}

// Delete handles DELETE /api/projects/{pid}
// Deletes a project along with its post-mortem and insights.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), userID, projectID); err != nil {
		writeServiceError(w, err, "Failed to delete project", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SavePostMortem handles PUT /api/projects/{pid}/post-mortem
func (h *ProjectsHandler) SavePostMortem(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req PostMortemRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	pm := &models.PostMortem{
		ProjectID:      projectID,
		WhatProblem:    strings.TrimSpace(req.WhatProblem),
		WhatWentWrong:  strings.TrimSpace(req.WhatWentWrong),
		LessonsLearned: strings.TrimSpace(req.LessonsLearned),
	}
	if err := h.postMortemService.Save(r.Context(), userID, pm); err != nil {
		writeServiceError(w, err, "Failed to save post-mortem", h.logger)
		return
	}
	writeResult(w, http.StatusOK, pm, h.logger)
}

// GetPostMortem handles GET /api/projects/{pid}/post-mortem
func (h *ProjectsHandler) GetPostMortem(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	pm, err := h.postMortemService.Get(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Failed to get post-mortem", h.logger)
		return
	}
	writeResult(w, http.StatusOK, pm, h.logger)
}

// AnalyzePostMortem handles POST /api/projects/{pid}/post-mortem/analyze
// Regenerates the typed insight sections for the project's post-mortem.
func (h *ProjectsHandler) AnalyzePostMortem(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.postMortemService.Analyze(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Failed to analyze post-mortem", h.logger)
		return
	}
	if result.Insights == nil {
		result.Insights = []*models.AIInsight{}
	}
	writeResult(w, http.StatusOK, result, h.logger)
}

// ListInsights handles GET /api/projects/{pid}/insights
func (h *ProjectsHandler) ListInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	insights, err := h.postMortemService.ListInsights(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Failed to list insights", h.logger)
		return
	}
	if insights == nil {
		insights = []*models.AIInsight{}
	}
	writeResult(w, http.StatusOK, map[string]any{"insights": insights}, h.logger)
}
