package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

// PatternsHandler runs the pattern analysis pipeline and serves its dashboard.
type PatternsHandler struct {
	analysisService  services.PatternAnalysisService
	dashboardService services.DashboardService
	logger           *zap.Logger
}

// NewPatternsHandler creates a new patterns handler.
func NewPatternsHandler(analysisService services.PatternAnalysisService, dashboardService services.DashboardService, logger *zap.Logger) *PatternsHandler {
	return &PatternsHandler{
		analysisService:  analysisService,
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// RegisterRoutes registers the patterns handler's routes on the given mux.
func (h *PatternsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, ownerMiddleware OwnerMiddleware) {
	route := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(ownerMiddleware(next))
	}

	mux.HandleFunc("POST /api/patterns/analyze", route(h.Analyze))
	mux.HandleFunc("POST /api/patterns/coach", route(h.Coach))
	mux.HandleFunc("GET /api/patterns/dashboard", route(h.Dashboard))
	mux.HandleFunc("POST /api/patterns/clear", route(h.Clear))
}

// Analyze handles POST /api/patterns/analyze
// Runs detection and coaching over the user's whole history. Early returns
// such as needs_more_data are successful responses.
func (h *PatternsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.analysisService.RunFullAnalysis(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to run pattern analysis", h.logger)
		return
	}
	writeResult(w, http.StatusOK, result, h.logger)
}

// Coach handles POST /api/patterns/coach
func (h *PatternsHandler) Coach(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.analysisService.RunCoaching(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to generate coaching", h.logger)
		return
	}
	writeResult(w, http.StatusOK, result, h.logger)
}

// Dashboard handles GET /api/patterns/dashboard
func (h *PatternsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to load dashboard", h.logger)
		return
	}
	writeResult(w, http.StatusOK, dashboard, h.logger)
}

// Clear handles POST /api/patterns/clear
func (h *PatternsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.analysisService.ClearInsights(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Failed to clear patterns", h.logger)
		return
	}
	writeResult(w, http.StatusOK, result, h.logger)
}
