// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// TokenCall records one request to the fake token endpoint.
type TokenCall struct {
	ClientID     string
	ClientSecret string
	Form         url.Values
}

// TokenHandler answers a token request with a status and a JSON body.
type TokenHandler func(form url.Values) (int, any)

// APIHandler answers a Web API request with a status and a JSON body.
type APIHandler func(r *http.Request) (int, any)

// FakeProvider is an httptest server standing in for the accounts service and the Web API.
//
// Token requests go to /api/token, everything under /v1/ goes to the API handler.
// Unconfigured token requests fail with invalid_grant; unconfigured API requests succeed with
// a fixed profile.
type FakeProvider struct {
	*httptest.Server

	mu         sync.Mutex
	onToken    TokenHandler
	onAPI      APIHandler
	tokenCalls []TokenCall
	apiCalls   []string
}

// NewFakeProvider starts a fake provider closed at the end of the test.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	f := &FakeProvider{
		onToken: func(url.Values) (int, any) {
			return http.StatusBadRequest, map[string]string{"error": "invalid_grant"}
		},
		onAPI: func(*http.Request) (int, any) {
			return http.StatusOK, map[string]string{"id": "fake-user", "display_name": "Fake User", "email": "fake@example.com"}
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("/v1/", f.handleAPI)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

func (f *FakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, secret, _ := r.BasicAuth()

	f.mu.Lock()
	f.tokenCalls = append(f.tokenCalls, TokenCall{ClientID: id, ClientSecret: secret, Form: r.PostForm})
	handler := f.onToken
	f.mu.Unlock()

	status, body := handler(r.PostForm)
	writeJSON(w, status, body)
}

func (f *FakeProvider) handleAPI(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.apiCalls = append(f.apiCalls, r.Header.Get("Authorization"))
	handler := f.onAPI
	f.mu.Unlock()

	status, body := handler(r)
	writeJSON(w, status, body)
}

// OnToken replaces the token endpoint behavior.
func (f *FakeProvider) OnToken(h TokenHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onToken = h
}

// OnAPI replaces the Web API behavior.
func (f *FakeProvider) OnAPI(h APIHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAPI = h
}

// TokenCalls returns the token requests received so far.
func (f *FakeProvider) TokenCalls() []TokenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenCall(nil), f.tokenCalls...)
}

// APICalls returns the Authorization headers of the API requests received so far.
func (f *FakeProvider) APICalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiCalls...)
}

func (f *FakeProvider) AuthURL() string  { return f.URL + "/authorize" }
func (f *FakeProvider) TokenURL() string { return f.URL + "/api/token" }
func (f *FakeProvider) APIURL() string   { return f.URL + "/v1" }

// Grant builds a successful token response.
func Grant(accessToken, refreshToken string, expiresIn int) map[string]any {
	body := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	}
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}
	return body
}

// BearerIs reports whether an Authorization header carries token.
func BearerIs(header, token string) bool {
	return header == "Bearer "+token
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// DrainBody reads and closes a response body.
func DrainBody(t *testing.T, body io.ReadCloser) string {
	t.Helper()
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
