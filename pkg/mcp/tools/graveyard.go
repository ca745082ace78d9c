package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

// GraveyardToolDeps contains the services the analysis tools call into.
type GraveyardToolDeps struct {
	Analysis    services.PatternAnalysisService
	PostMortems services.PostMortemService
	Dashboard   services.DashboardService
	Logger      *zap.Logger
}

// RegisterGraveyardTools registers the pattern analysis, coaching, post-mortem
// and dashboard tools. Every tool acts on behalf of the authenticated user.
func RegisterGraveyardTools(s *server.MCPServer, deps *GraveyardToolDeps) {
	registerRunPatternAnalysisTool(s, deps)
	registerRunCoachingTool(s, deps)
	registerAnalyzePostMortemTool(s, deps)
	registerGetPatternDashboardTool(s, deps)
}

func registerRunPatternAnalysisTool(s *server.MCPServer, deps *GraveyardToolDeps) {
	tool := mcp.NewTool(
		"run_pattern_analysis",
		mcp.WithDescription(
			"Detect recurring failure patterns across all of the user's abandoned projects, "+
				"replace the stored patterns with the new findings and generate coaching insights. "+
				"Needs at least 2 projects; otherwise returns status 'needs_more_data'. "+
				"Statuses: 'no_patterns' (nothing above the confidence threshold), "+
				"'generated' (insights produced), 'all_filtered' (every insight failed the quality gate).",
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUser(ctx)
		if errResult != nil {
			return errResult, nil
		}
		ctx = models.WithTrigger(ctx, models.TriggerMCP)

		result, err := deps.Analysis.RunFullAnalysis(ctx, userID)
		if err != nil {
			deps.Logger.Debug("run_pattern_analysis failed", zap.String("user_id", userID.String()), zap.Error(err))
			return ServiceErrorResult(err)
		}
		return jsonResult(result)
	})
}

func registerRunCoachingTool(s *server.MCPServer, deps *GraveyardToolDeps) {
	tool := mcp.NewTool(
		"run_coaching",
		mcp.WithDescription(
			"Regenerate coaching insights from the user's already-detected patterns without re-running detection. "+
				"Returns status 'needs_more_data' when fewer than 2 projects exist or no patterns have been detected yet "+
				"(run run_pattern_analysis first).",
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUser(ctx)
		if errResult != nil {
			return errResult, nil
		}
		ctx = models.WithTrigger(ctx, models.TriggerMCP)

		result, err := deps.Analysis.RunCoaching(ctx, userID)
		if err != nil {
			deps.Logger.Debug("run_coaching failed", zap.String("user_id", userID.String()), zap.Error(err))
			return ServiceErrorResult(err)
		}
		return jsonResult(result)
	})
}

func registerAnalyzePostMortemTool(s *server.MCPServer, deps *GraveyardToolDeps) {
	tool := mcp.NewTool(
		"analyze_post_mortem",
		mcp.WithDescription(
			"Analyze one project's post-mortem against the user's other projects and store "+
				"pattern recognition, coaching, reflection question and strategy insights for it. "+
				"Replaces any insights previously generated for the project.",
		),
		mcp.WithString(
			"project_id",
			mcp.Required(),
			mcp.Description("UUID of the project whose post-mortem should be analyzed"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUser(ctx)
		if errResult != nil {
			return errResult, nil
		}
		ctx = models.WithTrigger(ctx, models.TriggerMCP)

		projectID, errResult := requireUUIDParam(req, "project_id")
		if errResult != nil {
			return errResult, nil
		}

		result, err := deps.PostMortems.Analyze(ctx, userID, projectID)
		if err != nil {
			deps.Logger.Debug("analyze_post_mortem failed",
				zap.String("user_id", userID.String()),
				zap.String("project_id", projectID.String()),
				zap.Error(err))
			return ServiceErrorResult(err)
		}
		return jsonResult(result)
	})
}

func registerGetPatternDashboardTool(s *server.MCPServer, deps *GraveyardToolDeps) {
	tool := mcp.NewTool(
		"get_pattern_dashboard",
		mcp.WithDescription(
			"Return the user's live failure patterns, coaching insights, learning velocity and recent "+
				"velocity history. Read-only; does not run any analysis.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, errResult := requireUser(ctx)
		if errResult != nil {
			return errResult, nil
		}
		ctx = models.WithTrigger(ctx, models.TriggerMCP)

		dashboard, err := deps.Dashboard.Get(ctx, userID)
		if err != nil {
			return ServiceErrorResult(err)
		}
		return jsonResult(dashboard)
	})
}
