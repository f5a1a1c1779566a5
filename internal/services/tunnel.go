package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/desertthunder/spotauth/internal/shared"
)

// StaticEndpoint resolves to a fixed redirect URI. The empty value is never ready.
type StaticEndpoint string

func (s StaticEndpoint) ResolvePublicEndpoint(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: no redirect_uri configured", shared.ErrEndpointUnavailable)
	}
	return string(s), nil
}

type ngrokTunnel struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
}

type ngrokTunnels struct {
	Tunnels []ngrokTunnel `json:"tunnels"`
}

// NgrokResolver discovers the callback URL from a local ngrok agent API (GET /api/tunnels).
//
// The first https tunnel wins. Once found the URL is cached for the process lifetime.
type NgrokResolver struct {
	api          *APIService
	callbackPath string

	mu       sync.Mutex
	resolved string
}

// NewNgrokResolver creates a resolver querying the agent at apiURL.
func NewNgrokResolver(apiURL string, client *http.Client) *NgrokResolver {
	return &NgrokResolver{
		api:          NewAPIService(strings.TrimSuffix(apiURL, "/"), client),
		callbackPath: "/callback",
	}
}

func (n *NgrokResolver) ResolvePublicEndpoint(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.resolved != "" {
		return n.resolved, nil
	}

	resp, err := n.api.Get(ctx, "/api/tunnels")
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrEndpointUnavailable, err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("%w: tunnel API returned status %d", shared.ErrEndpointUnavailable, resp.StatusCode)
	}

	var body ngrokTunnels
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrEndpointUnavailable, err)
	}

	for _, t := range body.Tunnels {
		if t.Proto == "https" || strings.HasPrefix(t.PublicURL, "https://") {
			n.resolved = strings.TrimSuffix(t.PublicURL, "/") + n.callbackPath
			return n.resolved, nil
		}
	}

	return "", fmt.Errorf("%w: no https tunnel is running", shared.ErrEndpointUnavailable)
}
