// Package testhelpers provides shared fixtures for graveyard integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/database"
)

// PostgresImage is the image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// TestDB holds the shared database container with migrations applied.
type TestDB struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once per test binary and migrated to the latest schema.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, PostgresImage,
		postgres.WithDatabase("graveyard_test"),
		postgres.WithUsername("graveyard"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	sqlDB := db.SQLDB()
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// OwnerContext returns a context carrying an owner scope for userID.
// The scope is released when the test finishes.
func (d *TestDB) OwnerContext(t *testing.T, userID uuid.UUID) context.Context {
	t.Helper()

	scope, err := d.DB.WithOwner(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to acquire owner scope: %v", err)
	}
	t.Cleanup(scope.Close)

	return database.SetOwnerScope(context.Background(), scope)
}

// Truncate empties every graveyard table.
func (d *TestDB) Truncate(t *testing.T) {
	t.Helper()

	_, err := d.DB.Exec(context.Background(), `
		TRUNCATE graveyard_llm_conversations, graveyard_user_learning_metrics, graveyard_pinned_insights,
		         graveyard_ai_insights, graveyard_pattern_insights, graveyard_user_patterns,
		         graveyard_post_mortems, graveyard_project_metadata, graveyard_projects`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
