package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

type mockAnalysisService struct {
	runFullFunc     func(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)
	runCoachingFunc func(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error)
}

func (m *mockAnalysisService) RunFullAnalysis(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return m.runFullFunc(ctx, userID)
}

func (m *mockAnalysisService) RunCoaching(ctx context.Context, userID uuid.UUID) (*models.AnalysisResult, error) {
	return m.runCoachingFunc(ctx, userID)
}

func (m *mockAnalysisService) ClearInsights(ctx context.Context, userID uuid.UUID) (*models.ClearResult, error) {
	return &models.ClearResult{}, nil
}

type mockPostMortemService struct {
	analyzeFunc func(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error)
}

func (m *mockPostMortemService) Save(ctx context.Context, userID uuid.UUID, pm *models.PostMortem) error {
	return nil
}

func (m *mockPostMortemService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortem, error) {
	return nil, nil
}

func (m *mockPostMortemService) Analyze(ctx context.Context, userID, projectID uuid.UUID) (*models.PostMortemAnalysisResult, error) {
	return m.analyzeFunc(ctx, userID, projectID)
}

func (m *mockPostMortemService) ListInsights(ctx context.Context, userID, projectID uuid.UUID) ([]*models.AIInsight, error) {
	return nil, nil
}

type mockDashboardService struct {
	getFunc func(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error)
}

func (m *mockDashboardService) Get(ctx context.Context, userID uuid.UUID) (*models.Dashboard, error) {
	return m.getFunc(ctx, userID)
}

// toolResponse is the decoded first text content of a tools/call response.
type toolResponse struct {
	Text    string
	IsError bool
	RPCErr  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
}

// callTool sends a tools/call through HandleMessage and decodes the reply.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	return callToolAs(t, context.Background(), s, name, args)
}

func callToolAs(t *testing.T, ctx context.Context, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(ctx, request))
	require.NoError(t, err)

	var response struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	out := toolResponse{IsError: response.Result.IsError, RPCErr: response.Error}
	if len(response.Result.Content) > 0 {
		out.Text = response.Result.Content[0].Text
	}
	return out
}

func userContext(userID uuid.UUID) context.Context {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}}
	return auth.WithClaims(context.Background(), claims, "tok")
}
