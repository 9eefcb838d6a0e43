package session

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/testaustime/testaustime-auth/internal/config"
)

// Issuer hands a resolved session token to the browser
type Issuer struct {
	cookieName  string
	domain      string
	redirectURL string
	httpOnly    bool
	sameSite    http.SameSite
}

// NewIssuer validates the cookie configuration once at startup. A bad domain
// or landing URL is a configuration error, never a per-request one.
func NewIssuer(cfg config.SessionConfig) (*Issuer, error) {
	sameSite, err := config.ParseSameSite(cfg.SameSite)
	if err != nil {
		return nil, err
	}

	probe := &http.Cookie{
		Name:   cfg.CookieName,
		Value:  "probe",
		Domain: cfg.CookieDomain,
		Path:   "/",
	}
	if cfg.CookieDomain == "" {
		return nil, fmt.Errorf("session cookie domain must not be empty")
	}
	if err := probe.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session cookie configuration: %w", err)
	}

	u, err := url.Parse(cfg.RedirectURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid session redirect URL: %q", cfg.RedirectURL)
	}

	return &Issuer{
		cookieName:  cfg.CookieName,
		domain:      cfg.CookieDomain,
		redirectURL: u.String(),
		httpOnly:    cfg.HTTPOnly,
		sameSite:    sameSite,
	}, nil
}

// CookieName returns the name of the session cookie
func (i *Issuer) CookieName() string {
	return i.cookieName
}

// Cookie wraps a session token in the configured cookie attributes
func (i *Issuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     i.cookieName,
		Value:    token,
		Domain:   i.domain,
		Path:     "/",
		Secure:   true,
		HttpOnly: i.httpOnly,
		SameSite: i.sameSite,
	}
}

// BuildResponse sets the session cookie and permanently redirects to the application
func (i *Issuer) BuildResponse(w http.ResponseWriter, r *http.Request, token string) {
	w.Header().Set("Cache-Control", "no-store")
	http.SetCookie(w, i.Cookie(token))
	http.Redirect(w, r, i.redirectURL, http.StatusPermanentRedirect)
}
