// Package oauthtest runs a fake TestausID provider for tests.
package oauthtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Default responses served by a new Provider
const (
	DefaultToken   = "tok_xyz"
	DefaultProfile = `{"id":"42","name":"alice","platform":{"id":"p1"}}`
)

type response struct {
	status int
	body   string
}

// Provider is an httptest server speaking the TestausID token and profile API.
// It records every request so tests can assert on outbound traffic.
type Provider struct {
	Server *httptest.Server

	mu                sync.Mutex
	token             response
	profile           response
	tokenFailures     []int
	tokenCalls        int
	profileCalls      int
	lastForm          url.Values
	lastContentType   string
	lastAuthorization string
}

// NewProvider starts a fake provider that is closed with the test
func NewProvider(t testing.TB) *Provider {
	t.Helper()

	p := &Provider{
		token:   response{http.StatusOK, `{"token":"` + DefaultToken + `"}`},
		profile: response{http.StatusOK, DefaultProfile},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/token", p.handleToken)
	mux.HandleFunc("GET /api/v1/me", p.handleProfile)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)

	return p
}

// URL returns the provider base URL
func (p *Provider) URL() string {
	return p.Server.URL
}

// SetToken changes the token endpoint response
func (p *Provider) SetToken(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = response{status, body}
}

// SetProfile changes the profile endpoint response
func (p *Provider) SetProfile(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = response{status, body}
}

// FailTokenWith makes the next token calls answer with the given statuses
// before falling back to the configured response
func (p *Provider) FailTokenWith(statuses ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenFailures = append(p.tokenFailures, statuses...)
}

// TokenCalls returns how many token requests were received
func (p *Provider) TokenCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCalls
}

// ProfileCalls returns how many profile requests were received
func (p *Provider) ProfileCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profileCalls
}

// Calls returns the total number of requests received
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCalls + p.profileCalls
}

// LastTokenRequest returns the form and content type of the last token request
func (p *Provider) LastTokenRequest() (url.Values, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm, p.lastContentType
}

// LastAuthorization returns the Authorization header of the last profile request
func (p *Provider) LastAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthorization
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	p.mu.Lock()
	p.tokenCalls++
	p.lastForm = r.PostForm
	p.lastContentType = r.Header.Get("Content-Type")
	resp := p.token
	if len(p.tokenFailures) > 0 {
		resp = response{p.tokenFailures[0], `{"error":"unavailable"}`}
		p.tokenFailures = p.tokenFailures[1:]
	}
	p.mu.Unlock()

	write(w, resp)
}

func (p *Provider) handleProfile(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.profileCalls++
	p.lastAuthorization = r.Header.Get("Authorization")
	resp := p.profile
	p.mu.Unlock()

	write(w, resp)
}

func write(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	w.Write([]byte(resp.body))
}
