package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
)

// OAuthHandler serves the authorization code flow for the caller's session.
//
// Routes:
//   - GET /login redirects to the provider with a fresh state
//   - GET /callback validates the state, exchanges the code and stores the refresh token
//   - GET /refresh_token returns a new access token as JSON
type OAuthHandler struct {
	store     models.SessionStore
	provider  services.OAuthProvider
	resolver  services.EndpointResolver
	refresher services.Refresher
	logger    *log.Logger
	mux       *http.ServeMux
}

// NewOAuthHandler creates a new OAuth handler. Session ids come from the [Sessions] middleware.
func NewOAuthHandler(
	store models.SessionStore,
	provider services.OAuthProvider,
	resolver services.EndpointResolver,
	refresher services.Refresher,
	logger *log.Logger,
) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &OAuthHandler{
		store:     store,
		provider:  provider,
		resolver:  resolver,
		refresher: refresher,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /login", h.Login)
	h.mux.HandleFunc("GET /callback", h.Callback)
	h.mux.HandleFunc("GET /refresh_token", h.RefreshToken)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback", "GET /refresh_token"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Login starts the flow: it records a new pending state and the redirect URI on the session,
// then redirects to the provider.
//
// While no public callback URL is known the client gets a 503 and nothing is stored.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := SessionIDFrom(ctx)
	logger := shared.WithLogger(h.logger, "session", sessionID)

	redirectURI, err := h.resolver.ResolvePublicEndpoint(ctx)
	if err != nil {
		logger.Warn("login before callback URL is known", "error", err)
		w.Header().Set("Retry-After", "5")
		http.Error(w, "Not ready yet: the public callback URL is not available. Try again in a few seconds.", http.StatusServiceUnavailable)
		return
	}

	state, err := shared.GenerateState(shared.StateLength)
	if err != nil {
		logger.Error("failed to generate state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	_, err = h.store.Update(ctx, sessionID, func(s *models.Session) error {
		s.PendingState = state
		s.RedirectURI = redirectURI
		return nil
	})
	if err != nil {
		logger.Error("failed to store pending state", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger.Info("redirecting to provider", "provider", h.provider.Name())
	http.Redirect(w, r, h.provider.AuthURL(state, redirectURI), http.StatusFound)
}

// Callback completes the flow.
//
// The pending state is consumed by every attempt, matching or not. A mismatch redirects to
// /#error=state_mismatch without contacting the provider.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := SessionIDFrom(ctx)
	logger := shared.WithLogger(h.logger, "session", sessionID)
	query := r.URL.Query()

	var pending, redirectURI string
	if _, err := h.store.Get(ctx, sessionID); err == nil {
		_, err = h.store.Update(ctx, sessionID, func(s *models.Session) error {
			pending, redirectURI = s.PendingState, s.RedirectURI
			s.PendingState = ""
			return nil
		})
		if err != nil {
			logger.Error("failed to consume pending state", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	} else if !errors.Is(err, shared.ErrSessionNotFound) {
		logger.Error("failed to load session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := query.Get("state")
	if state == "" || pending == "" || state != pending {
		logger.Warn("callback rejected", "error", shared.ErrStateMismatch)
		http.Redirect(w, r, "/#error=state_mismatch", http.StatusFound)
		return
	}

	if providerErr := query.Get("error"); providerErr != "" || query.Get("code") == "" {
		if providerErr == "" {
			providerErr = "missing authorization code"
		}
		logger.Warn("authorization denied", "error", providerErr)
		renderPage(logger, w, http.StatusBadRequest, failurePage, pageData{
			Title:  "Authorization failed",
			Detail: fmt.Sprintf("%v: %s", shared.ErrTokenExchangeFailed, providerErr),
		})
		return
	}

	pair, err := h.provider.Exchange(ctx, query.Get("code"), redirectURI)
	if err != nil {
		logger.Error("code exchange failed", "error", err)
		renderPage(logger, w, http.StatusBadGateway, failurePage, pageData{
			Title:  "Authorization failed",
			Detail: "The authorization code could not be exchanged. Please log in again.",
		})
		return
	}

	_, err = h.store.Update(ctx, sessionID, func(s *models.Session) error {
		s.RefreshToken = pair.RefreshToken
		return nil
	})
	if err != nil {
		logger.Error("failed to store refresh token", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	logger.Info("authorization complete")

	user, err := h.provider.UserProfile(ctx, pair.AccessToken)
	if err != nil {
		logger.Error("profile fetch failed", "error", err, "status", shared.StatusOf(err))
		renderPage(logger, w, http.StatusBadGateway, failurePage, pageData{
			Title:  "Profile unavailable",
			Detail: "You are logged in, but your profile could not be loaded.",
		})
		return
	}

	renderPage(logger, w, http.StatusOK, successPage, pageData{Title: "Logged in", User: user})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RefreshToken exchanges the session's stored refresh token for a new access token.
func (h *OAuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := SessionIDFrom(ctx)

	pair, err := h.refresher.Refresh(ctx, sessionID)
	switch {
	case errors.Is(err, shared.ErrNoRefreshToken):
		writeJSONError(h.logger, w, http.StatusUnauthorized, err)
		return
	case err != nil:
		writeJSONError(h.logger, w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(h.logger, w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   pair.ExpiresIn,
	})
}

// Health reports liveness.
func Health(logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeJSON sends v with status. The header is already out when encoding fails, so
// the failure is only logged.
func writeJSON(logger *log.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write JSON response", "status", status, "error", err)
	}
}

func writeJSONError(logger *log.Logger, w http.ResponseWriter, status int, err error) {
	writeJSON(logger, w, status, map[string]string{"error": err.Error()})
}

type pageData struct {
	Title  string
	Detail string
	User   *services.SpotifyUser
}

const pageLayout = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #1DB954; }
        .err { color: #d0342c; }
        p, dd { color: #666; margin: 0; }
        dl { display: grid; grid-template-columns: auto auto; gap: .25rem 1rem; text-align: left; }
    </style>
</head>
<body>
    <div class="container">{{template "body" .}}</div>
</body>
</html>
`

var (
	successPage = template.Must(template.Must(template.New("success").Parse(pageLayout)).Parse(`{{define "body"}}
        <h1 class="ok">✓ Logged in as {{.User.DisplayName}}</h1>
        <dl>
            <dt>Display name</dt><dd>{{.User.DisplayName}}</dd>
            <dt>ID</dt><dd>{{.User.ID}}</dd>
            <dt>Email</dt><dd>{{.User.Email}}</dd>
        </dl>
{{end}}`))

	failurePage = template.Must(template.Must(template.New("failure").Parse(pageLayout)).Parse(`{{define "body"}}
        <h1 class="err">{{.Title}}</h1>
        <p>{{.Detail}}</p>
        <p><a href="/login">Try again</a></p>
{{end}}`))
)

func renderPage(logger *log.Logger, w http.ResponseWriter, status int, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		logger.Error("failed to render page", "page", tmpl.Name(), "status", status, "error", err)
	}
}
