// Package repositories provides Postgres access for graveyard records. Every
// method reads the owner-scoped connection that database.WithOwner placed in
// the context.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/database"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

var errNoScope = errors.New("no owner scope in context")

func ownerScope(ctx context.Context) (*database.OwnerScope, error) {
	scope, ok := database.GetOwnerScope(ctx)
	if !ok || scope == nil || scope.Conn == nil {
		return nil, errNoScope
	}
	return scope, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// insertEach runs insert for every row inside its own savepoint of tx so a
// failing row is rolled back alone and reported, while the others commit.
// It returns the rows that were written.
func insertEach[T any](ctx context.Context, tx pgx.Tx, kind string, rows []T, key func(T) string, insert func(pgx.Tx, T) error) ([]T, []models.RowFailure) {
	var failures []models.RowFailure
	written := make([]T, 0, len(rows))
	for _, row := range rows {
		sp, err := tx.Begin(ctx)
		if err == nil {
			err = insert(sp, row)
			if err == nil {
				err = sp.Commit(ctx)
			} else {
				_ = sp.Rollback(ctx)
			}
		}
		if err != nil {
			failures = append(failures, models.RowFailure{Kind: kind, Key: key(row), Error: err.Error()})
			continue
		}
		written = append(written, row)
	}
	return written, failures
}

// lockUserRows holds a transaction-scoped advisory lock on one user's rows of
// table. Concurrent replace transactions for the same user queue behind it, so
// each one deactivates the set the previous one committed.
func lockUserRows(ctx context.Context, tx pgx.Tx, table string, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, table+":"+userID.String()); err != nil {
		return fmt.Errorf("failed to lock %s for user: %w", table, err)
	}
	return nil
}
