package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

// FeedbackRequest is the body of PUT /api/insights/{iid}/feedback.
type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,oneof=helpful not_helpful irrelevant"`
}

// PinRequest is the body of POST /api/insights/pins.
type PinRequest struct {
	InsightType string `json:"insight_type" validate:"required,oneof=project_specific pattern_analysis"`
	InsightID   string `json:"insight_id" validate:"required,uuid"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// InsightsHandler handles feedback on and pinning of insights.
type InsightsHandler struct {
	insightService services.InsightService
	logger         *zap.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(insightService services.InsightService, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{insightService: insightService, logger: logger}
}

// RegisterRoutes registers the insights handler's routes on the given mux.
func (h *InsightsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, ownerMiddleware OwnerMiddleware) {
	route := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(ownerMiddleware(next))
	}

	mux.HandleFunc("PUT /api/insights/{iid}/feedback", route(h.SetFeedback))
	mux.HandleFunc("POST /api/insights/pins", route(h.Pin))
	mux.HandleFunc("GET /api/insights/pins", route(h.ListPins))
	mux.HandleFunc("DELETE /api/insights/pins/{kind}/{iid}", route(h.Unpin))
}

// SetFeedback handles PUT /api/insights/{iid}/feedback
func (h *InsightsHandler) SetFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	insightID, ok := ParseInsightID(w, r, h.logger)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := h.insightService.SetFeedback(r.Context(), userID, insightID, models.InsightFeedback(req.Feedback)); err != nil {
		writeServiceError(w, err, "Failed to record feedback", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pin handles POST /api/insights/pins
// Pinning the same insight twice is a 409.
func (h *InsightsHandler) Pin(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	var req PinRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	pin, err := h.insightService.Pin(r.Context(), userID, models.PinKind(req.InsightType), uuid.MustParse(req.InsightID), req.Notes)
	if err != nil {
		writeServiceError(w, err, "Failed to pin insight", h.logger)
		return
	}
	writeResult(w, http.StatusCreated, pin, h.logger)
}

// ListPins handles GET /api/insights/pins?type=
func (h *InsightsHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	var kind *models.PinKind
	if t := r.URL.Query().Get("type"); t != "" {
		k := models.PinKind(t)
		kind = &k
	}

	pins, err := h.insightService.ListPins(r.Context(), userID, kind)
	if err != nil {
		writeServiceError(w, err, "Failed to list pinned insights", h.logger)
		return
	}
	if pins == nil {
		pins = []*models.PinnedInsight{}
	}
	writeResult(w, http.StatusOK, map[string]any{"pins": pins}, h.logger)
}

// Unpin handles DELETE /api/insights/pins/{kind}/{iid}
func (h *InsightsHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	insightID, ok := ParseInsightID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.insightService.Unpin(r.Context(), userID, models.PinKind(r.PathValue("kind")), insightID); err != nil {
		writeServiceError(w, err, "Failed to unpin insight", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
