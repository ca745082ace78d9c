package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/config"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/database"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/llm"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "graveyard",
	Short: "Learn from abandoned side projects",
	Long: `Graveyard records abandoned projects and their post-mortems, detects recurring
failure patterns across them and generates coaching insights.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MCP endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		skipMigrations, _ := cmd.Flags().GetBool("skip-migrations")

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if !skipMigrations {
			if err := a.migrate(); err != nil {
				return err
			}
		}

		return a.serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		db, err := database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		sqlDB := db.SQLDB()
		defer sqlDB.Close()
		return database.RunMigrations(sqlDB, logger)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run pattern analysis for one user and print the result as JSON",
	Long: `Run the analysis pipeline for a single user outside the HTTP server.

Examples:
  graveyard analyze --user 5d0f1c7e-1d2b-4a3c-9e8f-0a1b2c3d4e5f
  graveyard analyze --user 5d0f1c7e-1d2b-4a3c-9e8f-0a1b2c3d4e5f --coaching`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawUser, _ := cmd.Flags().GetString("user")
		coachingOnly, _ := cmd.Flags().GetBool("coaching")

		userID, err := uuid.Parse(rawUser)
		if err != nil {
			return fmt.Errorf("--user must be a UUID: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.analyze(ctx, userID, coachingOnly)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score recorded completion calls with deterministic checks",
	Long: `Assess how well the model followed each phase's response contract, using the
conversations recorded when llm.record_conversations is enabled.

Examples:
  graveyard assess --user 5d0f1c7e-1d2b-4a3c-9e8f-0a1b2c3d4e5f
  graveyard assess --user 5d0f1c7e-1d2b-4a3c-9e8f-0a1b2c3d4e5f --phase coaching --limit 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawUser, _ := cmd.Flags().GetString("user")
		phase, _ := cmd.Flags().GetString("phase")
		limit, _ := cmd.Flags().GetInt("limit")

		userID, err := uuid.Parse(rawUser)
		if err != nil {
			return fmt.Errorf("--user must be a UUID: %w", err)
		}
		switch phase {
		case "", llm.PhaseDetection, llm.PhaseCoaching, llm.PhasePostMortem:
		default:
			return fmt.Errorf("--phase must be one of %s, %s, %s", llm.PhaseDetection, llm.PhaseCoaching, llm.PhasePostMortem)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		reports, err := a.assess(ctx, userID, phase, limit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")

	serveCmd.Flags().Bool("skip-migrations", false, "Do not apply pending migrations on startup")

	analyzeCmd.Flags().String("user", "", "Owner user id (JWT subject)")
	analyzeCmd.Flags().Bool("coaching", false, "Only regenerate coaching insights from stored patterns")
	_ = analyzeCmd.MarkFlagRequired("user")

	assessCmd.Flags().String("user", "", "Owner user id (JWT subject)")
	assessCmd.Flags().String("phase", "", "Only assess one phase: detection, coaching or post_mortem")
	assessCmd.Flags().Int("limit", 200, "Most recent conversations to assess")
	_ = assessCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the logger for its environment.
func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(path, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// shutdown stops srv, giving in-flight requests up to timeout to finish.
func shutdown(srv *http.Server, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("HTTP server shutdown did not complete", zap.Error(err))
	}
}
