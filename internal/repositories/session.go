package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

// SessionRepository implements [models.SessionStore] on SQLite.
//
// Refresh tokens are sealed with the session id as associated data before they are written.
type SessionRepository struct {
	db     *sql.DB
	sealer *shared.Sealer
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB, sealer *shared.Sealer) *SessionRepository {
	return &SessionRepository{db: db, sealer: sealer}
}

const sessionColumns = `id, sequence, pending_state, redirect_uri, refresh_token, created_at, updated_at`

func (r *SessionRepository) scan(row interface{ Scan(...any) error }) (*models.Session, error) {
	var (
		s      models.Session
		sealed string
	)

	err := row.Scan(&s.ID, &s.Sequence, &s.PendingState, &s.RedirectURI, &sealed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	token, err := r.sealer.Open(sealed, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token for session %s: %w", s.ID, err)
	}
	s.RefreshToken = token

	return &s, nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	s, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return s, nil
}

// Set creates or replaces a session
func (r *SessionRepository) Set(ctx context.Context, s *models.Session) error {
	_, err := r.Update(ctx, s.ID, func(cur *models.Session) error {
		assign(cur, s)
		return nil
	})
	return err
}

// Update reads, mutates and writes a session inside one transaction.
func (r *SessionRepository) Update(ctx context.Context, id string, fn models.UpdateFunc) (*models.Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := r.scan(tx.QueryRowContext(ctx, query, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		sequence, err := nextSequence(ctx, tx, "sessions")
		if err != nil {
			return nil, fmt.Errorf("failed to generate sequence: %w", err)
		}
		s = models.NewSession(id)
		s.Sequence = sequence
	case err != nil:
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if err := fn(s); err != nil {
		return nil, err
	}
	s.ID = id
	s.UpdatedAt = time.Now().UTC()

	sealed, err := r.sealer.Seal(s.RefreshToken, id)
	if err != nil {
		return nil, err
	}

	upsert := `
		INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pending_state = excluded.pending_state,
			redirect_uri = excluded.redirect_uri,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, upsert, id, s.Sequence, s.PendingState, s.RedirectURI, sealed, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}

	return s, nil
}

// Delete removes a session by ID
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List retrieves all sessions ordered by sequence
func (r *SessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}
