package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// PatternRepository provides data access for detected behavioral patterns.
// Stale rows are deactivated, never deleted, so detection history is kept.
type PatternRepository interface {
	// ListActive returns the live patterns of a user, most confident first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]*models.UserPattern, error)
	// LatestByName returns the newest row per pattern name, active or not.
	LatestByName(ctx context.Context, userID uuid.UUID) (map[models.PatternName]*models.UserPattern, error)
	// ReplaceActive deactivates every live pattern of the user and inserts
	// patterns in one transaction. It returns the rows written plus a failure
	// per row that could not be inserted. The error is set only when the
	// batch as a whole failed.
	ReplaceActive(ctx context.Context, userID uuid.UUID, patterns []*models.UserPattern) ([]*models.UserPattern, []models.RowFailure, error)
	// DeactivateAll soft-deletes every live pattern and returns how many changed.
	DeactivateAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type patternRepository struct{}

// NewPatternRepository creates a new PatternRepository.
func NewPatternRepository() PatternRepository {
	return &patternRepository{}
}

var _ PatternRepository = (*patternRepository)(nil)

const patternColumns = `id, user_id, pattern_type, pattern_name, pattern_value, frequency, confidence_score,
		       is_active, first_detected_at, last_detected_at, created_at`

func (r *patternRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.UserPattern, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + patternColumns + `
		FROM graveyard_user_patterns
		WHERE user_id = $1 AND is_active
		ORDER BY confidence_score DESC, pattern_name ASC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	return scanPatternRows(rows)
}

func (r *patternRepository) LatestByName(ctx context.Context, userID uuid.UUID) (map[models.PatternName]*models.UserPattern, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT DISTINCT ON (pattern_name) ` + patternColumns + `
		FROM graveyard_user_patterns
		WHERE user_id = $1
		ORDER BY pattern_name, created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern history: %w", err)
	}
	defer rows.Close()

	patterns, err := scanPatternRows(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[models.PatternName]*models.UserPattern, len(patterns))
	for _, p := range patterns {
		latest[p.PatternName] = p
	}
	return latest, nil
}

func (r *patternRepository) ReplaceActive(ctx context.Context, userID uuid.UUID, patterns []*models.UserPattern) ([]*models.UserPattern, []models.RowFailure, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return nil, nil, err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	if err := lockUserRows(ctx, tx, "graveyard_user_patterns", userID); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE graveyard_user_patterns SET is_active = false WHERE user_id = $1 AND is_active`, userID); err != nil {
		return nil, nil, fmt.Errorf("failed to deactivate patterns: %w", err)
	}

	now := time.Now()
	written, failures := insertEach(ctx, tx, "user_pattern", patterns,
		func(p *models.UserPattern) string { return string(p.PatternName) },
		func(q pgx.Tx, p *models.UserPattern) error {
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			p.UserID = userID
			p.IsActive = true
			p.CreatedAt = now
			if p.FirstDetectedAt.IsZero() {
				p.FirstDetectedAt = now
			}
			if p.LastDetectedAt.IsZero() {
				p.LastDetectedAt = now
			}

			value, err := json.Marshal(p.PatternValue)
			if err != nil {
				return fmt.Errorf("failed to marshal pattern_value: %w", err)
			}

			_, err = q.Exec(ctx, `
				INSERT INTO graveyard_user_patterns (
					id, user_id, pattern_type, pattern_name, pattern_value, frequency, confidence_score,
					is_active, first_detected_at, last_detected_at, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, $10)`,
				p.ID, p.UserID, p.PatternType, p.PatternName, value, p.Frequency, p.ConfidenceScore,
				p.FirstDetectedAt, p.LastDetectedAt, p.CreatedAt,
			)
			return err
		})

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit patterns: %w", err)
	}
	return written, failures, nil
}

func (r *patternRepository) DeactivateAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	scope, err := ownerScope(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := scope.Conn.Exec(ctx, `UPDATE graveyard_user_patterns SET is_active = false WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate patterns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPatternRows(rows pgx.Rows) ([]*models.UserPattern, error) {
	var patterns []*models.UserPattern
	for rows.Next() {
		var p models.UserPattern
		var value []byte
		err := rows.Scan(
			&p.ID, &p.UserID, &p.PatternType, &p.PatternName, &value, &p.Frequency, &p.ConfidenceScore,
			&p.IsActive, &p.FirstDetectedAt, &p.LastDetectedAt, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		if len(value) > 0 {
			if err := json.Unmarshal(value, &p.PatternValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal pattern_value: %w", err)
			}
		}
		patterns = append(patterns, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}
	return patterns, nil
}
