package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
)

// Tool call outcomes recorded in metrics and logs.
const (
	OutcomeSuccess   = "success"
	OutcomeToolError = "tool_error"
	OutcomeError     = "error"
)

// maxPreviewLength bounds the result preview attached to tool error logs.
const maxPreviewLength = 200

// AuditLogger records every MCP tool call as a structured log line and a
// metrics sample. It plugs into the server through mcp-go hooks.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP tool calls.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	elapsed := a.elapsed(id)
	toolName := req.Params.Name

	fields := a.baseFields(ctx, req, elapsed)
	if result != nil && result.IsError {
		metrics.RecordToolCall(toolName, OutcomeToolError, elapsed)
		a.logger.Info("MCP tool returned error result", append(fields, zap.String("preview", resultPreview(result)))...)
		return
	}

	metrics.RecordToolCall(toolName, OutcomeSuccess, elapsed)
	a.logger.Debug("MCP tool call completed", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	elapsed := a.elapsed(id)
	metrics.RecordToolCall(req.Params.Name, OutcomeError, elapsed)
	a.logger.Warn("MCP tool call failed", append(a.baseFields(ctx, req, elapsed),
		zap.String("error", logging.SanitizeError(err)),
	)...)
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

func (a *AuditLogger) baseFields(ctx context.Context, req *mcplib.CallToolRequest, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", elapsed),
	}
	if args, ok := req.Params.Arguments.(map[string]any); ok && len(args) > 0 {
		fields = append(fields, zap.Any("arguments", logging.SanitizeArguments(args)))
	}
	if claims, ok := auth.GetClaims(ctx); ok {
		fields = append(fields, zap.String("user_id", claims.Subject))
	}
	return fields
}

// resultPreview returns a truncated, redacted copy of the first text content.
func resultPreview(result *mcplib.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return logging.TruncateString(logging.SanitizeText(tc.Text), maxPreviewLength)
		}
	}
	return ""
}
