// package repositories provides persistence layer implementations for sessions.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextSequence increments a per-table counter inside the caller's transaction.
//
// Sequence numbers give sessions a human-readable order (session #42).
func nextSequence(ctx context.Context, q execQuerier, table string) (int, error) {
	sequenceTable := table + "_sequence"

	_, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = q.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}

// assign copies the mutable fields of src onto dst.
func assign(dst, src *models.Session) {
	dst.PendingState = src.PendingState
	dst.RedirectURI = src.RedirectURI
	dst.RefreshToken = src.RefreshToken
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", shared.ErrInvalidArgument)
	}
	return nil
}
