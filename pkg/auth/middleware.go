package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// SetAuditor reports rejected tokens to auditor. Requests without any
// Authorization header are not reported.
func (m *Middleware) SetAuditor(auditor *audit.SecurityAuditor) {
	m.auditor = auditor
}

// RequireAuth validates the bearer JWT and stores its claims and token in the
// request context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			if !errors.Is(err, ErrMissingAuthorization) {
				m.auditor.LogAuthFailure(r.RemoteAddr, audit.AuthFailureDetails{
					Surface: audit.SurfaceAPI,
					Method:  r.Method,
					Path:    r.URL.Path,
					Reason:  err.Error(),
				})
			}
			m.unauthorized(w, "Authentication required")
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

// Handler adapts RequireAuth to http.Handler for mounting non-HandlerFunc
// servers such as the MCP endpoint.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return m.RequireAuth(next.ServeHTTP)
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="graveyard"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
