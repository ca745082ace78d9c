package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
)

type healthResult struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	LLMCircuit string `json:"llm_circuit,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and, when breaker is non-nil,
// the completion circuit state so a client can tell whether analysis calls
// will be attempted.
func RegisterHealthTool(s *server.MCPServer, version string, breaker *llm.CircuitBreaker) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		health := healthResult{Status: "ok", Version: version}
		if breaker != nil {
			health.LLMCircuit = breaker.State().String()
		}
		result, err := json.Marshal(health)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
