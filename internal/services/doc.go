// Package services implements the provider side of the authorization flow and the token
// lifecycle built on it.
//
// # Provider
//
// [SpotifyService] implements [OAuthProvider] on top of golang.org/x/oauth2. Both grants
// (authorization_code and refresh_token) send the client credentials in an HTTP Basic header
// with a form-encoded body. The service keeps no tokens; callers decide what to persist.
//
// # Token lifecycle
//
// [TokenRefresher] reads a session's refresh token from a [models.SessionStore], trades it for a
// new access token and stores a rotated refresh token when the provider issues one.
//
// [Executor] sends a bearer-authenticated request and, on a 401, refreshes once and retries once.
// Nothing else is retried.
//
// # Public endpoint
//
// The redirect URI comes from an [EndpointResolver]: [StaticEndpoint] for a configured URI,
// or [NgrokResolver] which asks a local ngrok agent for its https tunnel.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrTokenExchangeFailed] : the code or credentials were rejected
//   - [shared.ErrNoRefreshToken] : the session never completed authorization
//   - [shared.ErrRefreshFailed] : the refresh token was rejected
//   - [shared.ErrRequestFailed] : any other API failure, as a [shared.RequestError]
//   - [shared.ErrEndpointUnavailable] : no public callback URL yet
package services
