package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/go-chi/httplog/v3"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type requestIDKey struct{}
type sessionIDKey struct{}

// RequestID reads X-Request-ID from the client or generates one, and stores it in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = shared.GenerateID()
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDPropagation echoes the request ID in the response and the request log.
func RequestIDPropagation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := RequestIDFrom(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
			httplog.SetAttrs(r.Context(), slog.String("request_id", id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDFrom returns the request ID stored by [RequestID].
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logging logs one line per request. Bodies and credential headers are never logged.
// The callback is skipped since its query string carries the authorization code;
// the handler logs its outcome instead.
func Logging(logger *slog.Logger) Middleware {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type", "Origin"},
		LogResponseHeaders: []string{},
		LogRequestBody:     nil,
		LogResponseBody:    nil,
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/callback"
		},
	})
}

// Sessions assigns every browser an opaque session id kept in an HttpOnly cookie.
//
// A missing or malformed cookie gets a fresh id. Sessions are only persisted once a handler writes them.
func Sessions(cookieName string, secure bool) Middleware {
	if cookieName == "" {
		cookieName = "spotauth_session"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}

			if id == "" {
				id = shared.GenerateID()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
		})
	}
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFrom returns the session id stored by [Sessions].
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// RateLimit rejects requests to the given paths with 429 once limiter runs dry.
// Other paths pass through untouched.
func RateLimit(limiter *rate.Limiter, paths ...string) Middleware {
	limited := make(map[string]bool, len(paths))
	for _, p := range paths {
		limited[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limited[r.URL.Path] && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
