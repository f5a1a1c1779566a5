package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrStateMismatch       = fmt.Errorf("state mismatch")
	ErrTokenExchangeFailed = fmt.Errorf("token exchange failed")
	ErrEndpointUnavailable = fmt.Errorf("public endpoint not available")

	// Token lifecycle errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Session storage errors
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrStoreConflict   = fmt.Errorf("concurrent session update")

	// API errors
	ErrRequestFailed = fmt.Errorf("API request failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// RequestError carries the provider's response for a failed authenticated call.
//
// It matches [ErrRequestFailed] with [errors.Is].
type RequestError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", ErrRequestFailed, e.Err)
	}
	return fmt.Sprintf("%v: status %d, body: %s", ErrRequestFailed, e.StatusCode, string(e.Body))
}

func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRequestFailed, e.Err}
	}
	return []error{ErrRequestFailed}
}

// StatusOf returns the HTTP status carried by a [RequestError] in err's chain, or 0.
func StatusOf(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
