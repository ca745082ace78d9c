// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
)

const realm = "graveyard"

// Middleware provides MCP-specific authentication middleware.
// Unlike the general auth middleware, this returns RFC 6750 WWW-Authenticate
// headers for OAuth 2.0 Bearer token authentication errors.
type Middleware struct {
	authService auth.AuthService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// SetAuditor reports malformed and rejected tokens to auditor.
func (m *Middleware) SetAuditor(auditor *audit.SecurityAuditor) {
	m.auditor = auditor
}

// RequireAuth validates the bearer JWT and injects its claims and token into
// the request context, where MCP tool handlers read the owner user id.
func (m *Middleware) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			switch {
			case errors.Is(err, auth.ErrMissingAuthorization):
				// RFC 6750 3.1: no error code when the request lacks credentials.
				m.logger.Debug("MCP auth failed: missing token", zap.String("path", r.URL.Path))
				w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			case errors.Is(err, auth.ErrInvalidAuthFormat):
				m.logger.Debug("MCP auth failed: malformed Authorization header", zap.String("path", r.URL.Path))
				m.reportFailure(r, err)
				m.writeWWWAuthenticate(w, http.StatusBadRequest, "invalid_request", "The Authorization header must use the Bearer scheme")
				return
			case err != nil:
				m.logger.Debug("MCP auth failed: invalid token",
					zap.String("path", r.URL.Path),
					zap.String("error", logging.SanitizeError(err)))
				m.reportFailure(r, err)
				m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
		})
	}
}

func (m *Middleware) reportFailure(r *http.Request, err error) {
	m.auditor.LogAuthFailure(r.RemoteAddr, audit.AuthFailureDetails{
		Surface: audit.SurfaceMCP,
		Method:  r.Method,
		Path:    r.URL.Path,
		Reason:  err.Error(),
	})
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer realm="` + realm + `", error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
