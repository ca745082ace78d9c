package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireUser returns the caller's user id, or a tool error result when the
// request carries no usable claims.
func requireUser(ctx context.Context) (uuid.UUID, *mcp.CallToolResult) {
	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		return uuid.Nil, NewErrorResult("authentication_required", err.Error())
	}
	return userID, nil
}

// requireUUIDParam reads a required UUID string argument.
func requireUUIDParam(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, NewErrorResult("invalid_request", err.Error())
	}
	id, err := uuid.Parse(trimString(raw))
	if err != nil {
		return uuid.Nil, NewErrorResultWithDetails("invalid_request", name+" must be a UUID", map[string]any{
			name: raw,
		})
	}
	return id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
