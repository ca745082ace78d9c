package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/assess"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/audit"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/config"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/database"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/handlers"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-graveyard/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/middleware"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/retry"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/services"
)

const shutdownTimeout = 30 * time.Second

// app owns the process-wide resources shared by the serve and analyze commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	auditor *audit.SecurityAuditor

	db         *database.DB
	redis      *redis.Client
	recorder   *llm.AsyncConversationRecorder
	llmFactory *llm.ClientFactory
	owners     *database.OwnerScopeProvider

	projects    services.ProjectService
	postMortems services.PostMortemService
	analysis    services.PatternAnalysisService
	dashboard   services.DashboardService
	insights    services.InsightService
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, logger, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, auditor: audit.NewSecurityAuditor(logger)}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeURL(cfg.Database.ConnectionString())),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("detection_mode", cfg.Analysis.DetectionMode))

	db, err := database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.owners = database.NewOwnerScopeProvider(db)

	rdb, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		logger.Info("Redis analysis lock enabled", zap.String("addr", cfg.Redis.Addr()))
	}
	a.redis = rdb

	factory, err := llm.NewClientFactory(&cfg.LLM, a.auditor, logger)
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	a.llmFactory = factory

	if cfg.LLM.RecordConversations {
		a.recorder = llm.NewAsyncConversationRecorder(
			repositories.NewConversationRepository(),
			a.owners.WithOwnerScope,
			logger,
			100,
		)
		factory.SetRecorder(a.recorder)
	}

	projectRepo := repositories.NewProjectRepository()
	postMortemRepo := repositories.NewPostMortemRepository()
	patternRepo := repositories.NewPatternRepository()
	patternInsightRepo := repositories.NewPatternInsightRepository()
	aiInsightRepo := repositories.NewAIInsightRepository()
	metricsRepo := repositories.NewLearningMetricsRepository()
	metadataRepo := repositories.NewProjectMetadataRepository()
	pinRepo := repositories.NewPinnedInsightRepository()

	locker := services.NewAnalysisLocker(rdb, cfg.Analysis.LockTTL, logger)

	a.projects = services.NewProjectService(projectRepo, logger)
	a.postMortems = services.NewPostMortemService(
		projectRepo, postMortemRepo, patternRepo, aiInsightRepo,
		factory, locker,
		services.PostMortemSettings{
			HistoryLimit: cfg.Analysis.PostMortemHistoryLimit,
			Retry:        retry.CompletionConfig(cfg.LLM.MaxRetries),
		},
		logger,
	)
	a.analysis = services.NewPatternAnalysisService(
		projectRepo, patternRepo, patternInsightRepo, metricsRepo,
		services.NewMetadataProvider(metadataRepo, logger),
		services.NewPatternSync(patternRepo, patternInsightRepo, logger),
		factory, locker,
		services.AnalysisSettingsFrom(cfg),
		logger,
	)
	a.dashboard = services.NewDashboardService(projectRepo, patternRepo, patternInsightRepo, metricsRepo, cfg.Analysis.DashboardInsightLimit, logger)
	a.insights = services.NewInsightService(patternInsightRepo, aiInsightRepo, pinRepo, logger)

	return nil
}

func (a *app) migrate() error {
	sqlDB := a.db.SQLDB()
	defer sqlDB.Close()
	return database.RunMigrations(sqlDB, a.logger)
}

// analyze runs the pipeline for userID under an owner-scoped connection.
func (a *app) analyze(ctx context.Context, userID uuid.UUID, coachingOnly bool) (*models.AnalysisResult, error) {
	ownerCtx, cleanup, err := a.owners.WithOwnerScope(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire owner connection: %w", err)
	}
	defer cleanup()
	ownerCtx = models.WithTrigger(ownerCtx, models.TriggerCLI)

	if coachingOnly {
		return a.analysis.RunCoaching(ownerCtx, userID)
	}
	return a.analysis.RunFullAnalysis(ownerCtx, userID)
}

// assess scores the user's recorded completion calls, newest limit first.
// An empty phase assesses every phase.
func (a *app) assess(ctx context.Context, userID uuid.UUID, phase string, limit int) ([]*assess.Report, error) {
	ownerCtx, cleanup, err := a.owners.WithOwnerScope(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire owner connection: %w", err)
	}
	defer cleanup()

	repo := repositories.NewConversationRepository()
	if phase != "" {
		convs, err := repo.ListByPhase(ownerCtx, userID, phase, limit)
		if err != nil {
			return nil, err
		}
		return []*assess.Report{assess.Assess(phase, convs)}, nil
	}

	convs, err := repo.ListByUser(ownerCtx, userID, limit)
	if err != nil {
		return nil, err
	}
	return assess.All(convs), nil
}

// routes builds the HTTP surface: health, metrics, the REST API and /mcp.
func (a *app) routes(ctx context.Context) (http.Handler, func(), error) {
	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: a.cfg.Auth.EnableVerification,
		JWKSEndpoints:      a.cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	if !a.cfg.Auth.EnableVerification {
		a.logger.Warn("JWT verification is disabled; tokens are parsed without signature checks")
	}

	authService := auth.NewAuthService(jwksClient, a.logger)
	authMiddleware := auth.NewMiddleware(authService, a.logger)
	authMiddleware.SetAuditor(a.auditor)
	ownerMiddleware := database.WithOwnerContext(a.db, a.logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(a.cfg, a.llmFactory.Breaker(), a.logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	handlers.NewProjectsHandler(a.projects, a.postMortems, a.logger).RegisterRoutes(mux, authMiddleware, ownerMiddleware)
	handlers.NewPatternsHandler(a.analysis, a.dashboard, a.logger).RegisterRoutes(mux, authMiddleware, ownerMiddleware)
	handlers.NewInsightsHandler(a.insights, a.logger).RegisterRoutes(mux, authMiddleware, ownerMiddleware)

	toolAudit := mcp.NewAuditLogger(a.logger)
	mcpServer := mcp.NewServer("ekaya-graveyard", a.cfg.Version, a.logger, server.WithHooks(toolAudit.Hooks()))
	tools.RegisterHealthTool(mcpServer.MCP(), a.cfg.Version, a.llmFactory.Breaker())
	tools.RegisterGraveyardTools(mcpServer.MCP(), &tools.GraveyardToolDeps{
		Analysis:    a.analysis,
		PostMortems: a.postMortems,
		Dashboard:   a.dashboard,
		Logger:      a.logger.Named("mcp-tools"),
	})

	mcpHandler := ownerMiddleware(mcpServer.NewStreamableHTTPServer().ServeHTTP)
	mcpAuth := mcpauth.NewMiddleware(authService, a.logger)
	mcpAuth.SetAuditor(a.auditor)
	mcpChain := mcpAuth.RequireAuth()(
		middleware.MCPRequestLogger(a.logger.Named("mcp"))(mcpHandler),
	)
	mux.Handle("POST /mcp", mcpChain)

	return middleware.RequestLogger(a.logger)(mux), jwksClient.Close, nil
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	handler, closeAuth, err := a.routes(ctx)
	if err != nil {
		return err
	}
	defer closeAuth()

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting ekaya-graveyard",
			zap.String("addr", srv.Addr),
			zap.String("version", a.cfg.Version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
		shutdown(srv, shutdownTimeout, a.logger)
		return nil
	}
}

// Close releases resources in reverse order of acquisition. Queued
// conversation records are flushed before the pool closes.
func (a *app) Close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
