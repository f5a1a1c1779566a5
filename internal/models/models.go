// package models defines the data model for the authorization service
package models

import (
	"context"
	"time"
)

// Session holds the authorization state of one browser session.
//
// PendingState is set by the login redirect and consumed by the callback.
// RefreshToken is the only token ever retained; access tokens are never stored.
type Session struct {
	ID           string
	Sequence     int
	PendingState string
	RedirectURI  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Authenticated reports whether the session holds a refresh token.
func (s *Session) Authenticated() bool {
	return s != nil && s.RefreshToken != ""
}

// Clone returns a copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// TokenPair is a token endpoint response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// UpdateFunc mutates a session inside [SessionStore.Update]. Returning an error aborts the update.
type UpdateFunc func(s *Session) error

// SessionStore persists sessions keyed by id.
//
// Implementations must isolate sessions from each other: Update is atomic per id and never
// blocks on other ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)                   // Get returns shared.ErrSessionNotFound for unknown ids
	Set(ctx context.Context, s *Session) error                              // Set creates or replaces a session
	Delete(ctx context.Context, id string) error                            // Delete removes a session; unknown ids are not an error
	Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error) // Update creates the session if absent
	List(ctx context.Context) ([]*Session, error)                           // List returns all sessions ordered by creation
}
