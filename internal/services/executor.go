package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/shared"
)

// Executor performs bearer-authenticated requests with one refresh-and-retry on 401.
type Executor struct {
	client    *http.Client
	refresher Refresher
	logger    *log.Logger
}

// NewExecutor creates an executor. A nil client uses [http.DefaultClient].
func NewExecutor(client *http.Client, refresher Refresher, logger *log.Logger) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Executor{client: client, refresher: refresher, logger: logger}
}

// Execute issues method url with accessToken.
//
// On 401 it refreshes sessionID's token once and retries once with the new token, returning
// whatever the retry yields. Refresh failures are returned without re-sending the request.
// Every other failure is returned as a [shared.RequestError] without retrying.
func (e *Executor) Execute(ctx context.Context, method, url, accessToken, sessionID string) (*APIResponse, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: no access token for session %s", shared.ErrNotAuthenticated, sessionID)
	}

	resp, err := bearerRequest(ctx, e.client, method, url, accessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return checkStatus(resp)
	}

	logger := shared.WithLogger(e.logger, "session", sessionID)
	logger.Info("access token rejected, refreshing", "method", method, "url", url)

	pair, err := e.refresher.Refresh(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	resp, err = bearerRequest(ctx, e.client, method, url, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		logger.Warn("refreshed token rejected, giving up", "url", url)
	}
	return checkStatus(resp)
}

func checkStatus(resp *APIResponse) (*APIResponse, error) {
	if !resp.Success() {
		return nil, &shared.RequestError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}
