package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"golang.org/x/time/rate"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows its own route patterns.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the patterns (e.g. "GET /login") this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options carries the dependencies of a [Server].
type Options struct {
	Config    shared.ServerConfig
	Store     models.SessionStore
	Provider  services.OAuthProvider
	Resolver  services.EndpointResolver
	Refresher services.Refresher
	Logger    *log.Logger
}

// Server is the authorization web service.
type Server struct {
	router     *BasicRouter
	httpServer *http.Server
	logger     *log.Logger
	addr       string
}

// New wires the routes and middleware stack.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(
		RequestID,
		Logging(shared.Slog(logger)),
		RequestIDPropagation,
		Sessions(opts.Config.CookieName, opts.Config.SecureCookie),
	)
	if opts.Config.LoginRate > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.Config.LoginRate), max(opts.Config.LoginBurst, 1))
		router.Use(RateLimit(limiter, "/login", "/callback"))
	}

	router.Handler(NewOAuthHandler(opts.Store, opts.Provider, opts.Resolver, opts.Refresher, logger))
	router.HandleFunc(http.MethodGet, "/health", Health(logger))

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              opts.Config.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
		addr:   opts.Config.Addr(),
	}
}

// Handler returns the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	return s.addr
}

// Start binds the listener and serves in the background.
//
// Bind failures are returned directly; later serve failures arrive on the channel,
// which is closed when serving stops.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.addr = ln.Addr().String()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("listening", "addr", s.addr)
		s.logger.Debug("routes", "patterns", s.router.Patterns())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down", "addr", s.addr)
	return s.httpServer.Shutdown(ctx)
}
