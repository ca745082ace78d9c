package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// This is used to return actionable error information to Claude
// as a successful tool result, ensuring error details are visible
// rather than being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable/actionable errors that Claude should see and
// can potentially fix (e.g., invalid parameters, resource not found).
//
// Do NOT use this for system failures (database connection errors,
// internal server errors) - those should still return Go errors.
//
// Example:
//
//	if project == nil {
//	    return NewErrorResult("not_found", "project not found"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional context.
// The details field can contain any additional information that might help
// Claude understand and respond to the error.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "insufficient_data",
//	    "at least 2 projects are needed",
//	    map[string]any{"project_count": 1},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// ServiceErrorResult converts a service error into a tool result Claude can
// act on. Errors that are not the caller's to fix (persistence failures,
// unmapped errors) are returned as Go errors instead.
func ServiceErrorResult(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error()), nil
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult("invalid_request", err.Error()), nil
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult("conflict", "an analysis is already running for this user; retry shortly"), nil
	case errors.Is(err, apperrors.ErrUpstreamFailure):
		return NewErrorResult("upstream_failure", "the completion service is unavailable; retry later"), nil
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return NewErrorResult("malformed_response", "the completion service returned an unreadable response; retry"), nil
	default:
		return nil, err
	}
}
