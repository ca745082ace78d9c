package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
)

func TestParseProjectID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantStatus int
		wantError  string
	}{
		{
			name:      "valid UUID",
			pathValue: "550e8400-e29b-41d4-a716-446655440000",
			wantOK:    true,
		},
		{
			name:       "invalid UUID",
			pathValue:  "not-a-uuid",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_project_id",
		},
		{
			name:       "empty UUID",
			pathValue:  "",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_project_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("pid", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseProjectID(rec, req, logger)

			if ok != tt.wantOK {
				t.Errorf("ParseProjectID() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				if id.String() != tt.pathValue {
					t.Errorf("ParseProjectID() id = %v, want %v", id, tt.pathValue)
				}
				return
			}

			if id != uuid.Nil {
				t.Errorf("ParseProjectID() id = %v, want uuid.Nil", id)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("ParseProjectID() status = %v, want %v", rec.Code, tt.wantStatus)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != tt.wantError {
				t.Errorf("ParseProjectID() error = %v, want %v", resp["error"], tt.wantError)
			}
		})
	}
}

func TestParseInsightID_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.SetPathValue("iid", "12345")
	rec := httptest.NewRecorder()

	id, ok := ParseInsightID(rec, req, zap.NewNop())

	if ok {
		t.Error("ParseInsightID() ok = true, want false")
	}
	if id != uuid.Nil {
		t.Errorf("ParseInsightID() id = %v, want uuid.Nil", id)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "invalid_insight_id" {
		t.Errorf("ParseInsightID() error = %v, want invalid_insight_id", resp["error"])
	}
}

func TestRequireUser(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name   string
		ctx    context.Context
		wantOK bool
	}{
		{
			name:   "user subject",
			ctx:    auth.WithClaims(context.Background(), &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()}}, "tok"),
			wantOK: true,
		},
		{
			name: "no claims",
			ctx:  context.Background(),
		},
		{
			name: "subject is not a uuid",
			ctx:  auth.WithClaims(context.Background(), &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "service-account"}}, "tok"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			got, ok := RequireUser(rec, req, zap.NewNop())

			if ok != tt.wantOK {
				t.Fatalf("RequireUser() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && got != userID {
				t.Errorf("RequireUser() = %v, want %v", got, userID)
			}
			if !tt.wantOK && rec.Code != http.StatusUnauthorized {
				t.Errorf("RequireUser() status = %v, want 401", rec.Code)
			}
		})
	}
}
