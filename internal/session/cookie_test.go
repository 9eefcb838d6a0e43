package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testaustime/testaustime-auth/internal/config"
)

func defaultSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		CookieName:   "testaustime_token",
		CookieDomain: "testaustime.fi",
		RedirectURL:  "https://testaustime.fi/oauth_redirect",
	}
}

func TestBuildResponse(t *testing.T) {
	issuer, err := NewIssuer(defaultSessionConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc123", nil)
	issuer.BuildResponse(rec, req, "sess_abc")

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://testaustime.fi/oauth_redirect", rec.Header().Get("Location"))
	assert.Equal(t, "testaustime_token=sess_abc; Path=/; Domain=testaustime.fi; Secure", rec.Header().Get("Set-Cookie"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestBuildResponseOptionalAttributes(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.HTTPOnly = true
	cfg.SameSite = "lax"
	issuer, err := NewIssuer(cfg)
	require.NoError(t, err)

	cookie := issuer.Cookie("sess_abc")
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestNewIssuerRejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.SessionConfig)
	}{
		{"empty name", func(c *config.SessionConfig) { c.CookieName = "" }},
		{"bad name", func(c *config.SessionConfig) { c.CookieName = "bad name" }},
		{"empty domain", func(c *config.SessionConfig) { c.CookieDomain = "" }},
		{"bad domain", func(c *config.SessionConfig) { c.CookieDomain = "testaustime..fi;" }},
		{"relative redirect", func(c *config.SessionConfig) { c.RedirectURL = "/oauth_redirect" }},
		{"bad same site", func(c *config.SessionConfig) { c.SameSite = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultSessionConfig()
			tt.mutate(&cfg)
			_, err := NewIssuer(cfg)
			assert.Error(t, err)
		})
	}
}
