package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

type sessionSummary struct {
	ID            string    `json:"id"`
	Authenticated bool      `json:"authenticated"`
	Pending       bool      `json:"pending_login"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionsList prints stored sessions. Tokens are never printed.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.sessions(ctx)
	if err != nil {
		return err
	}

	sessions, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, sessionSummary{
			ID:            s.ID,
			Authenticated: s.Authenticated(),
			Pending:       s.PendingState != "",
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}

	r.writePlainHeader(fmt.Sprintf("Sessions (%d)", len(summaries)))
	for _, s := range summaries {
		status := r.palette.Warn("not logged in")
		if s.Authenticated {
			status = r.palette.OK("logged in")
		}
		r.writePlain("%s  %-13s  updated %s\n", s.ID, status, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

// SessionsDelete removes a session, logging its owner out.
func (r *Runner) SessionsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	store, err := r.sessions(ctx)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	r.logger.Info("session deleted", "session", id)
	r.writePlain("%s %s\n", r.palette.OK("✓ Deleted"), id)
	return nil
}

// SessionsRefresh trades a session's refresh token for a new access token and prints it.
func (r *Runner) SessionsRefresh(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	refresher, err := r.refresher(ctx)
	if err != nil {
		return err
	}

	pair, err := refresher.Refresh(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"access_token": pair.AccessToken,
			"token_type":   "Bearer",
			"expires_in":   pair.ExpiresIn,
		}, false)
	}

	r.writePlain("%s\n", pair.AccessToken)
	r.writePlain("%s\n", r.palette.Help(fmt.Sprintf("expires in %ds", pair.ExpiresIn)))
	return nil
}
