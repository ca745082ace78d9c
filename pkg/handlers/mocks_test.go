package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

// mockProjectService is a configurable ProjectService.
type mockProjectService struct {
	createFunc  func(ctx context.Context, userID uuid.UUID, p *models.Project) error
	listFunc    func(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	getByIDFunc func(ctx context.Context, userID, id uuid.UUID) (*models.Project, error)
	updateFunc  func(ctx context.Context, userID, id uuid.UUID, update services.ProjectUpdate) (*models.Project, error)
	deleteFunc  func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *mockProjectService) Create(ctx context.Context, userID uuid.UUID, p *models.Project) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, p)
	}
	p.ID = uuid.New()
	p.UserID = userID
	return nil
}

func (m *mockProjectService) List(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Project, error) {
	return m.getByIDFunc(ctx, userID, id)
}

func (m *mockProjectService) Update(ctx context.Context, userID, id uuid.UUID, update services.ProjectUpdate) (*models.Project, error) {
	return m.updateFunc(ctx, userID, id, update)
}

func (m *mockProjectService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, id)
	}
	return nil
}

// mockPostMortemService is a configurable PostMortemService.
type mockPostMortemService struct {
	saveFunc         func(ctx context.Context, userID uuid.UUID, pm *models.PostMortem) error
	getFunc          func(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortem, error)
	analyzeFunc      func(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error)
	listInsightsFunc func(ctx context.Context, userID, projectID uuid.UUID) ([]*models.AIInsight, error)
}

func (m *mockPostMortemService) Save(ctx context.Context, userID uuid.UUID, pm *models.PostMortem) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, userID, pm)
	}
	pm.ID = uuid.New()
	return nil
}

func (m *mockPostMortemService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortem, error) {
	return m.getFunc(ctx, userID, projectID)
}

func (m *mockPostMortemService) Analyze(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error) {
	return m.analyzeFunc(ctx, userID, projectID)
}

func (m *mockPostMortemService) ListInsights(ctx context.Context, userID, projectID uuid.UUID) ([]*models.AIInsight, error) {
	if m.listInsightsFunc != nil {
		return m.listInsightsFunc(ctx, userID, projectID)
	}
	return nil, nil
}

// mockPatternAnalysisService is a configurable PatternAnalysisService.
type mockPatternAnalysisService struct {
	runFullAnalysisFunc func(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)
	runCoachingFunc     func(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)
	clearInsightsFunc   func(ctx context.Context, userID uuid.UUID) (*models.ClearResult, error)
}

func (m *mockPatternAnalysisService) RunFullAnalysis(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return m.runFullAnalysisFunc(ctx, userID)
}

func (m *mockPatternAnalysisService) RunCoaching(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return m.runCoachingFunc(ctx, userID)
}

func (m *mockPatternAnalysisService) ClearInsights(ctx context.Context, userID uuid.UUID) (*models.ClearResult, error) {
	return m.clearInsightsFunc(ctx, userID)
}

// mockDashboardService is a configurable DashboardService.
type mockDashboardService struct {
	getFunc func(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error)
}

func (m *mockDashboardService) Get(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	return m.getFunc(ctx, userID)
}

// mockInsightService is a configurable InsightService.
type mockInsightService struct {
	setFeedbackFunc func(ctx context.Context, userID, insightID uuid.UUID, feedback models.InsightFeedback) error
	pinFunc         func(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID, notes string) (*models.PinnedInsight, error)
	unpinFunc       func(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error
	listPinsFunc    func(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error)
}

func (m *mockInsightService) SetFeedback(ctx context.Context, userID, insightID uuid.UUID, feedback models.InsightFeedback) error {
	return m.setFeedbackFunc(ctx, userID, insightID, feedback)
}

func (m *mockInsightService) Pin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID, notes string) (*models.PinnedInsight, error) {
	return m.pinFunc(ctx, userID, kind, insightID, notes)
}

func (m *mockInsightService) Unpin(ctx context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error {
	return m.unpinFunc(ctx, userID, kind, insightID)
}

func (m *mockInsightService) ListPins(ctx context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error) {
	return m.listPinsFunc(ctx, userID, kind)
}

// stubAuthService accepts any request whose bearer token is "valid" and
// authenticates it as userID.
type stubAuthService struct {
	userID uuid.UUID
}

func (s *stubAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if r.Header.Get("Authorization") != "Bearer valid" {
		return nil, "", auth.ErrMissingAuthorization
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: s.userID.String()}}, "valid", nil
}

// passthroughOwner stands in for the owner-scoped connection middleware.
func passthroughOwner(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// routeRequest serves req through a mux with the real auth middleware, so
// path values and the 401 path are exercised.
func routeRequest(register func(*http.ServeMux, *auth.Middleware), userID uuid.UUID, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux, auth.NewMiddleware(&stubAuthService{userID: userID}, zap.NewNop()))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// bearerRequest builds a request with the token stubAuthService accepts.
func bearerRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer valid")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
