package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/spotauth/internal/shared"
	tu "github.com/desertthunder/spotauth/internal/testing"
	"golang.org/x/oauth2"
)

func testCredentials() map[string]string {
	return map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"redirect_uri":  "http://127.0.0.1:8888/callback",
	}
}

func newFakeSpotify(t *testing.T) (*SpotifyService, *tu.FakeProvider) {
	t.Helper()
	fake := tu.NewFakeProvider(t)
	srv, err := NewSpotifyService(testCredentials(), WithEndpoints(fake.AuthURL(), fake.TokenURL(), fake.APIURL()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return srv, fake
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.config.Endpoint.AuthStyle != oauth2.AuthStyleInHeader {
				t.Error("expected client credentials in the Authorization header")
			}
			if srv.HTTPClient().Timeout == 0 {
				t.Error("expected a bounded client timeout")
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Scopes", func(t *testing.T) {
			srv, _ := NewSpotifyService(testCredentials())
			if strings.Join(srv.config.Scopes, " ") != "user-read-private user-read-email" {
				t.Errorf("unexpected scopes %v", srv.config.Scopes)
			}
		})

		t.Run("Custom Scopes", func(t *testing.T) {
			creds := testCredentials()
			creds["scope"] = "playlist-read-private  user-read-email"

			srv, _ := NewSpotifyService(creds)
			if len(srv.config.Scopes) != 2 || srv.config.Scopes[0] != "playlist-read-private" {
				t.Errorf("unexpected scopes %v", srv.config.Scopes)
			}
		})
	})

	t.Run("AuthURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials())

		raw := srv.AuthURL("XYZ123", "https://tunnel.example/callback")
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("expected a valid URL, got %v", err)
		}

		if u.Scheme+"://"+u.Host+u.Path != spotifyAuthURL {
			t.Errorf("expected authorize endpoint, got %s", raw)
		}

		q := u.Query()
		want := map[string]string{
			"response_type": "code",
			"client_id":     "test_client_id",
			"scope":         "user-read-private user-read-email",
			"redirect_uri":  "https://tunnel.example/callback",
			"state":         "XYZ123",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("expected %s=%q, got %q", k, v, q.Get(k))
			}
		}

		t.Run("Falls Back To Configured Redirect", func(t *testing.T) {
			u, _ := url.Parse(srv.AuthURL("s", ""))
			if u.Query().Get("redirect_uri") != "http://127.0.0.1:8888/callback" {
				t.Errorf("unexpected redirect_uri %q", u.Query().Get("redirect_uri"))
			}
			if srv.config.RedirectURL != "http://127.0.0.1:8888/callback" {
				t.Error("expected per-call redirect not to mutate the shared config")
			}
		})
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnToken(func(form url.Values) (int, any) {
				return http.StatusOK, tu.Grant("AT1", "RT1", 3600)
			})

			pair, err := srv.Exchange(context.Background(), "validcode", "https://tunnel.example/callback")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.AccessToken != "AT1" || pair.RefreshToken != "RT1" {
				t.Errorf("unexpected pair %+v", pair)
			}
			if pair.ExpiresIn < 3590 || pair.ExpiresIn > 3600 {
				t.Errorf("expected expires_in near 3600, got %d", pair.ExpiresIn)
			}

			calls := fake.TokenCalls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 token call, got %d", len(calls))
			}
			call := calls[0]
			if call.ClientID != "test_client_id" || call.ClientSecret != "test_client_secret" {
				t.Errorf("expected basic auth credentials, got %q:%q", call.ClientID, call.ClientSecret)
			}
			if call.Form.Get("grant_type") != "authorization_code" {
				t.Errorf("expected authorization_code grant, got %q", call.Form.Get("grant_type"))
			}
			if call.Form.Get("code") != "validcode" {
				t.Errorf("expected code 'validcode', got %q", call.Form.Get("code"))
			}
			if call.Form.Get("redirect_uri") != "https://tunnel.example/callback" {
				t.Errorf("expected redirect_uri to match the authorize request, got %q", call.Form.Get("redirect_uri"))
			}
			if call.Form.Get("client_secret") != "" {
				t.Error("expected client secret to stay out of the form body")
			}
		})

		t.Run("Rejected Code", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)

			_, err := srv.Exchange(context.Background(), "badcode", "")
			if !errors.Is(err, shared.ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
			if !strings.Contains(err.Error(), "invalid_grant") {
				t.Errorf("expected provider error code in message, got %v", err)
			}
			if len(fake.TokenCalls()) != 1 {
				t.Errorf("expected exactly one attempt, got %d", len(fake.TokenCalls()))
			}
		})

		t.Run("Empty Code", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)

			_, err := srv.Exchange(context.Background(), "", "")
			if !errors.Is(err, shared.ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
			if len(fake.TokenCalls()) != 0 {
				t.Error("expected no token call for an empty code")
			}
		})

		t.Run("Missing Refresh Token", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnToken(func(url.Values) (int, any) {
				return http.StatusOK, tu.Grant("AT1", "", 3600)
			})

			_, err := srv.Exchange(context.Background(), "validcode", "")
			if !errors.Is(err, shared.ErrTokenExchangeFailed) {
				t.Errorf("expected ErrTokenExchangeFailed, got %v", err)
			}
		})
	})

	t.Run("RefreshToken", func(t *testing.T) {
		t.Run("Without Rotation", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnToken(func(url.Values) (int, any) {
				return http.StatusOK, tu.Grant("AT2", "", 3600)
			})

			pair, err := srv.RefreshToken(context.Background(), "RT1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.AccessToken != "AT2" {
				t.Errorf("expected AT2, got %q", pair.AccessToken)
			}
			if pair.RefreshToken != "RT1" {
				t.Errorf("expected the original refresh token back, got %q", pair.RefreshToken)
			}

			call := fake.TokenCalls()[0]
			if call.Form.Get("grant_type") != "refresh_token" || call.Form.Get("refresh_token") != "RT1" {
				t.Errorf("unexpected form %v", call.Form)
			}
			if call.ClientID != "test_client_id" {
				t.Errorf("expected basic auth, got %q", call.ClientID)
			}
		})

		t.Run("With Rotation", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnToken(func(url.Values) (int, any) {
				return http.StatusOK, tu.Grant("AT2", "RT2", 3600)
			})

			pair, err := srv.RefreshToken(context.Background(), "RT1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pair.RefreshToken != "RT2" {
				t.Errorf("expected rotated token RT2, got %q", pair.RefreshToken)
			}
		})

		t.Run("Rejected", func(t *testing.T) {
			srv, _ := newFakeSpotify(t)

			_, err := srv.RefreshToken(context.Background(), "RT1")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
			if strings.Contains(err.Error(), "RT1") {
				t.Error("expected refresh token to stay out of the error")
			}
		})

		t.Run("Empty Token", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)

			_, err := srv.RefreshToken(context.Background(), "")
			if !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
			if len(fake.TokenCalls()) != 0 {
				t.Error("expected no network call")
			}
		})
	})

	t.Run("UserProfile", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnAPI(func(r *http.Request) (int, any) {
				if r.URL.Path != "/v1/me" {
					t.Errorf("expected /v1/me, got %s", r.URL.Path)
				}
				return http.StatusOK, map[string]any{"id": "user1", "display_name": "User One", "email": "one@example.com"}
			})

			user, err := srv.UserProfile(context.Background(), "AT1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user.ID != "user1" || user.DisplayName != "User One" || user.Email != "one@example.com" {
				t.Errorf("unexpected user %+v", user)
			}
			if calls := fake.APICalls(); len(calls) != 1 || !tu.BearerIs(calls[0], "AT1") {
				t.Errorf("expected one call with Bearer AT1, got %v", calls)
			}
		})

		t.Run("Unauthorized", func(t *testing.T) {
			srv, fake := newFakeSpotify(t)
			fake.OnAPI(func(*http.Request) (int, any) {
				return http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}}
			})

			_, err := srv.UserProfile(context.Background(), "stale")
			if !errors.Is(err, shared.ErrRequestFailed) {
				t.Errorf("expected ErrRequestFailed, got %v", err)
			}
			if shared.StatusOf(err) != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", shared.StatusOf(err))
			}
		})
	})

	t.Run("URL", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials())

		tests := []struct {
			in, want string
		}{
			{"/me", spotifyBaseURL + "/me"},
			{"me/playlists", spotifyBaseURL + "/me/playlists"},
			{"https://api.spotify.com/v1/tracks/1", "https://api.spotify.com/v1/tracks/1"},
		}
		for _, tt := range tests {
			if got := srv.URL(tt.in); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})
}
