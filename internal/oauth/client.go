package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/testaustime/testaustime-auth/internal/config"
)

const (
	tokenPath   = "/api/v1/token"
	profilePath = "/api/v1/me"

	// maxResponseBytes caps how much of a provider response is read
	maxResponseBytes = 1 << 20

	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	retryRandomization   = 0.5

	// callsPerLogin is the token exchange plus the profile fetch
	callsPerLogin = 2
)

// Client talks to the TestausID provider. Everything the provider returns is
// trusted once it passes the schema checks here; any other provider behaviour
// surfaces as a KindUpstream error.
type Client struct {
	config     config.ProviderConfig
	tokenURL   string
	profileURL string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// Credential is the provider's short-lived bearer token. It lives only for
// the duration of the profile fetch and must never be logged.
type Credential string

// Profile is the provider's view of the authenticated user
type Profile struct {
	ExternalID  string
	DisplayName string
	PlatformID  string
}

type tokenResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform *struct {
		ID string `json:"id"`
	} `json:"platform"`
}

// NewClient creates a provider client from explicit configuration
func NewClient(cfg config.ProviderConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		config:     cfg,
		tokenURL:   base + tokenPath,
		profileURL: base + profilePath,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// A redirect from the provider is treated as a failed call
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = retryInitialInterval
			b.MaxInterval = retryMaxInterval
			b.RandomizationFactor = retryRandomization
			return b
		},
	}, nil
}

// MaxLoginDuration is the longest both provider calls of one login can take,
// counting every attempt and the backoff sleeps between them
func MaxLoginDuration(cfg config.ProviderConfig) time.Duration {
	retries := time.Duration(max(cfg.MaxRetries, 0))
	maxSleep := time.Duration(float64(retryMaxInterval) * (1 + retryRandomization))
	perCall := cfg.Timeout*(retries+1) + maxSleep*retries
	return callsPerLogin * perCall
}

// ExchangeCode exchanges a validated authorization code for a provider credential
func (c *Client) ExchangeCode(ctx context.Context, code Code) (Credential, error) {
	data := url.Values{}
	data.Set("code", string(code))
	data.Set("redirect_uri", c.config.RedirectURI)
	data.Set("client_id", c.config.ClientID)
	data.Set("client_secret", c.config.ClientSecret)
	body := data.Encode()

	var result tokenResponse
	err := c.call(ctx, "token exchange", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &result)
	if err != nil {
		return "", err
	}

	if result.Token == "" {
		return "", upstream("token exchange", errors.New("token response missing token"))
	}

	return Credential(result.Token), nil
}

// FetchProfile fetches the authenticated user's profile with the credential
func (c *Client) FetchProfile(ctx context.Context, credential Credential) (*Profile, error) {
	var result profileResponse
	err := c.call(ctx, "profile fetch", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+string(credential))
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &result)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	switch {
	case result.ID == "":
		return nil, upstream("profile fetch", errors.New("profile response missing id"))
	case result.Name == "":
		return nil, upstream("profile fetch", errors.New("profile response missing name"))
	case result.Platform == nil || result.Platform.ID == "":
		return nil, upstream("profile fetch", errors.New("profile response missing platform.id"))
	}

	return &Profile{
		ExternalID:  result.ID,
		DisplayName: result.Name,
		PlatformID:  result.Platform.ID,
	}, nil
}

// statusError is returned for a non-2xx provider response
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// call performs one provider request and decodes its JSON body into out.
// Transport failures, 5xx and 429 are retried up to MaxRetries times; every
// other failure is permanent. The final error is always KindUpstream.
func (c *Client) call(ctx context.Context, op string, newRequest func(context.Context) (*http.Request, error), out any) error {
	attempt := func() error {
		req, err := newRequest(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &statusError{StatusCode: resp.StatusCode, Body: string(snippet)}
			if isTransientStatus(resp.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(payload) > maxResponseBytes {
			return backoff.Permanent(fmt.Errorf("response exceeds %d bytes", maxResponseBytes))
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.config.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		return upstream(op, err)
	}
	return nil
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
