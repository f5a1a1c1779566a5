package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
)

// TokenRefresher exchanges a session's stored refresh token for a new access token.
type TokenRefresher struct {
	store    models.SessionStore
	provider TokenProvider
	logger   *log.Logger
}

// NewTokenRefresher creates a refresher backed by store and provider.
func NewTokenRefresher(store models.SessionStore, provider TokenProvider, logger *log.Logger) *TokenRefresher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenRefresher{store: store, provider: provider, logger: logger}
}

// Refresh returns a new access token for sessionID.
//
// A session without a refresh token fails with [shared.ErrNoRefreshToken] before any network call.
// Provider failures return [shared.ErrRefreshFailed] and leave the stored token alone.
// A rotated refresh token replaces the stored one unless the session changed meanwhile.
//
// The provider call and the rotation write are detached from ctx cancellation so an abandoned
// caller cannot strand a rotated token; the provider client's timeout bounds them instead.
// The returned pair never carries the refresh token.
func (r *TokenRefresher) Refresh(ctx context.Context, sessionID string) (*models.TokenPair, error) {
	session, err := r.store.Get(ctx, sessionID)
	if errors.Is(err, shared.ErrSessionNotFound) || (err == nil && !session.Authenticated()) {
		return nil, fmt.Errorf("%w: session %s", shared.ErrNoRefreshToken, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	logger := shared.WithLogger(r.logger, "session", sessionID)

	pair, err := r.provider.RefreshToken(detached, session.RefreshToken)
	if err != nil {
		logger.Warn("refresh rejected", "error", err)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}
		return nil, err
	}

	if pair.RefreshToken != "" && pair.RefreshToken != session.RefreshToken {
		used := session.RefreshToken
		_, err := r.store.Update(detached, sessionID, func(s *models.Session) error {
			if s.RefreshToken != used {
				return errRotationSuperseded
			}
			s.RefreshToken = pair.RefreshToken
			return nil
		})
		switch {
		case errors.Is(err, errRotationSuperseded):
			logger.Info("rotated refresh token superseded by a newer one")
		case err != nil:
			logger.Error("failed to persist rotated refresh token", "error", err)
		default:
			logger.Debug("stored rotated refresh token",
				"previous", shared.Fingerprint(used), "current", shared.Fingerprint(pair.RefreshToken))
		}
	}

	logger.Debug("access token refreshed", "expires_in", pair.ExpiresIn)

	return &models.TokenPair{AccessToken: pair.AccessToken, ExpiresIn: pair.ExpiresIn}, nil
}

var errRotationSuperseded = errors.New("refresh token changed during refresh")
