// Package server provides HTTP routing, middleware, and the OAuth handlers of the authorization service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] is applied in registration order, first added runs outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a wrong method gets a 405.
//
// # Middleware
//
//   - [RequestID] and [RequestIDPropagation] tag each request with an X-Request-ID
//   - [Logging] writes one structured line per request through httplog
//   - [Sessions] issues the opaque session cookie that keys every stored token
//   - [RateLimit] throttles /login and /callback
//
// # OAuth Handler
//
// [OAuthHandler] runs the authorization code flow against an injected provider and session store.
// /login stores a fresh state and the redirect URI, /callback validates and consumes that state,
// exchanges the code and keeps only the refresh token. Tokens are never rendered to the browser;
// /refresh_token hands out short-lived access tokens to the owner of the session cookie.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
