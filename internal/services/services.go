package services

import (
	"context"

	"github.com/desertthunder/spotauth/internal/models"
)

// OAuthProvider is the provider side of the authorization code flow.
type OAuthProvider interface {
	// AuthURL builds the authorization endpoint URL for the given state and redirect URI.
	AuthURL(state, redirectURI string) string

	// Exchange trades an authorization code for a token pair.
	// The redirect URI must match the one sent to AuthURL.
	Exchange(ctx context.Context, code, redirectURI string) (*models.TokenPair, error)

	// RefreshToken trades a refresh token for a new access token.
	TokenProvider

	// UserProfile fetches the profile of the user owning accessToken.
	UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// TokenProvider performs the refresh_token grant.
type TokenProvider interface {
	RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// Refresher obtains a fresh access token for a session.
type Refresher interface {
	Refresh(ctx context.Context, sessionID string) (*models.TokenPair, error)
}

// EndpointResolver reports the public base URL the provider should redirect back to.
//
// Implementations return shared.ErrEndpointUnavailable while the endpoint is not known yet.
type EndpointResolver interface {
	ResolvePublicEndpoint(ctx context.Context) (string, error)
}
