// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventAuthFailure is logged when a presented bearer token is rejected.
	EventAuthFailure SecurityEventType = "auth_failure"
	// EventCredentialRejected is logged when the completion provider rejects
	// the configured API key.
	EventCredentialRejected SecurityEventType = "completion_credential_rejected"
)

// Severities attached to security events.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Surfaces an authentication failure can come from.
const (
	SurfaceAPI = "api"
	SurfaceMCP = "mcp"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// AuthFailureDetails describes a rejected bearer token.
type AuthFailureDetails struct {
	Surface string `json:"surface"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Reason  string `json:"reason"`
}

// CredentialRejectedDetails describes a completion call refused for bad credentials.
type CredentialRejectedDetails struct {
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	Phase    string `json:"phase,omitempty"`
	Reason   string `json:"reason"`
}

// SecurityAuditor logs security events for SIEM consumption.
// A nil *SecurityAuditor is valid and logs nothing.
type SecurityAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit"), now: time.Now}
}

// LogAuthFailure records a bearer token that failed validation. Requests that
// carry no token at all are not security events and should not be logged here.
//
// Example usage:
//
//	auditor.LogAuthFailure(r.RemoteAddr, audit.AuthFailureDetails{
//	    Surface: audit.SurfaceMCP,
//	    Method:  r.Method,
//	    Path:    r.URL.Path,
//	    Reason:  err.Error(),
//	})
func (a *SecurityAuditor) LogAuthFailure(clientIP string, details AuthFailureDetails) {
	if a == nil {
		return
	}
	details.Reason = logging.SanitizeText(details.Reason)

	event := SecurityEvent{
		Timestamp: a.now().UTC(),
		EventType: EventAuthFailure,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  SeverityWarning,
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Bearer token rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("surface", details.Surface),
		zap.String("path", details.Path),
		zap.String("client_ip", clientIP),
		zap.String("severity", SeverityWarning),
	)
}

// LogCredentialRejected records that the completion provider refused the
// configured API key. Logged at ERROR with critical severity: every analysis
// fails until the key is replaced.
func (a *SecurityAuditor) LogCredentialRejected(userID string, details CredentialRejectedDetails) {
	if a == nil {
		return
	}
	details.Reason = logging.SanitizeText(details.Reason)

	event := SecurityEvent{
		Timestamp: a.now().UTC(),
		EventType: EventCredentialRejected,
		UserID:    userID,
		Details:   details,
		Severity:  SeverityCritical,
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("Completion provider rejected credentials",
		zap.String("event_json", string(eventJSON)),
		zap.String("model", details.Model),
		zap.String("endpoint", details.Endpoint),
		zap.String("user_id", userID),
		zap.String("severity", SeverityCritical),
	)
}
