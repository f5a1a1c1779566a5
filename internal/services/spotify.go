// Spotify implementation of [OAuthProvider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

var defaultScopes = []string{"user-read-private", "user-read-email"}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyService talks to the Spotify accounts service and Web API.
//
// Token grants go through [oauth2] with client credentials in an HTTP Basic header.
// Nothing here keeps tokens: callers pass them in and decide what to persist.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithEndpoints points the service at alternative accounts and API hosts.
func WithEndpoints(authURL, tokenURL, baseURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.config.Endpoint.AuthURL = authURL
		s.config.Endpoint.TokenURL = tokenURL
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the client used for token grants and API calls.
func WithHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognized keys: client_id, client_secret (required), redirect_uri and scope (space separated).
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	scopes := strings.Fields(credentials["scope"])
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  credentials["redirect_uri"],
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:    spotifyBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// withRedirect returns a copy of the config bound to redirectURI.
func (s *SpotifyService) withRedirect(redirectURI string) *oauth2.Config {
	c := *s.config
	if redirectURI != "" {
		c.RedirectURL = redirectURI
	}
	return &c
}

func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthURL returns the authorization URL carrying response_type, client_id, scope, redirect_uri and state.
func (s *SpotifyService) AuthURL(state, redirectURI string) string {
	return s.withRedirect(redirectURI).AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens (authorization_code grant).
func (s *SpotifyService) Exchange(ctx context.Context, code, redirectURI string) (*models.TokenPair, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", shared.ErrTokenExchangeFailed)
	}

	token, err := s.withRedirect(redirectURI).Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenExchangeFailed, describeGrantError(err))
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: response carried no refresh token", shared.ErrTokenExchangeFailed)
	}

	return tokenPair(token), nil
}

// RefreshToken trades a refresh token for a new access token (refresh_token grant).
//
// The returned pair carries the provider's rotated refresh token when one was issued,
// otherwise the token passed in.
func (s *SpotifyService) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	source := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrRefreshFailed, describeGrantError(err))
	}

	return tokenPair(token), nil
}

// UserProfile retrieves the profile of the user owning accessToken.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, s.URL("/me"), accessToken)
	if err != nil {
		return nil, err
	}

	var user SpotifyUser
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// URL resolves an API path (e.g. "/me") against the Web API base URL. Absolute URLs pass through.
func (s *SpotifyService) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

// HTTPClient returns the client used for provider calls.
func (s *SpotifyService) HTTPClient() *http.Client {
	return s.httpClient
}

// doRequest performs a single bearer-authenticated request. Non-2xx statuses become [shared.RequestError].
func (s *SpotifyService) doRequest(ctx context.Context, method, url, accessToken string) (*APIResponse, error) {
	resp, err := bearerRequest(ctx, s.httpClient, method, url, accessToken)
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, &shared.RequestError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

func bearerRequest(ctx context.Context, client *http.Client, method, url, accessToken string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	return send(client, req)
}

func tokenPair(token *oauth2.Token) *models.TokenPair {
	pair := &models.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		pair.ExpiresIn = int(time.Until(token.Expiry).Round(time.Second).Seconds())
	}
	return pair
}

// describeGrantError renders token endpoint failures without echoing request secrets.
func describeGrantError(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if retrieveErr.ErrorCode != "" {
			return fmt.Sprintf("status %d: %s %s", status, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
		return fmt.Sprintf("status %d", status)
	}
	return err.Error()
}
