package config

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration
type Config struct {
	Port        int      `env:"PORT" envDefault:"8080"`
	Environment string   `env:"ENVIRONMENT" envDefault:"production"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"https://testaustime.fi"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// friends. Only enable it behind a reverse proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	Database  DatabaseConfig
	Provider  ProviderConfig
	Session   SessionConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Telemetry TelemetryConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string `env:"DATABASE_TYPE" envDefault:"postgres"` // postgres or sqlite
	DSN          string `env:"DATABASE_DSN"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
}

// ProviderConfig holds the TestausID client registration. It is trusted,
// pre-validated configuration and never derived from request input.
type ProviderConfig struct {
	BaseURL      string        `env:"TESTAUSID_URL" envDefault:"https://id.testausserveri.fi"`
	ClientID     string        `env:"TESTAUSID_CLIENT_ID"`
	ClientSecret string        `env:"TESTAUSID_CLIENT_SECRET"`
	RedirectURI  string        `env:"TESTAUSID_REDIRECT_URI" envDefault:"https://api.testaustime.fi/auth/callback"`
	Timeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"PROVIDER_MAX_RETRIES" envDefault:"0"`
}

// SessionConfig describes the cookie handed to the browser after login
type SessionConfig struct {
	CookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"testaustime_token"`
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:"testaustime.fi"`
	RedirectURL  string `env:"SESSION_REDIRECT_URL" envDefault:"https://testaustime.fi/oauth_redirect"`
	HTTPOnly     bool   `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"false"`
	SameSite     string `env:"SESSION_COOKIE_SAME_SITE" envDefault:"default"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json or console
}

// RateLimitConfig bounds how often a single client may hit the callback
type RateLimitConfig struct {
	CallbackPerMinute int `env:"RATE_LIMIT_CALLBACK_PER_MINUTE" envDefault:"30"`
	Burst             int `env:"RATE_LIMIT_CALLBACK_BURST" envDefault:"10"`
}

// AuditConfig controls retention of login events
type AuditConfig struct {
	Retention     time.Duration `env:"AUDIT_RETENTION" envDefault:"720h"`
	PruneSchedule string        `env:"AUDIT_PRUNE_SCHEDULE" envDefault:"17 4 * * *"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"testaustime-auth"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Database.DSN == "" && cfg.Database.Type == "postgres" {
		dsn, err := buildPostgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.Database.DSN = dsn
	}
	cfg.CORSOrigins = trimCSV(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

type postgresEnv struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"testaustime"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"secret"`
	DBName   string `env:"POSTGRES_DB" envDefault:"testaustime"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

func buildPostgresDSN() (string, error) {
	var pg postgresEnv
	if err := env.Parse(&pg); err != nil {
		return "", fmt.Errorf("parse postgres env: %w", err)
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(pg.User, pg.Password),
		Host:   fmt.Sprintf("%s:%s", pg.Host, pg.Port),
		Path:   pg.DBName,
	}

	query := u.Query()
	query.Set("sslmode", pg.SSLMode)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if err := c.Provider.Validate(); err != nil {
		return err
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if _, err := ParseSameSite(c.Session.SameSite); err != nil {
		return err
	}

	if c.RateLimit.CallbackPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}

	if c.Audit.Retention <= 0 {
		return fmt.Errorf("AUDIT_RETENTION must be positive")
	}

	return nil
}

// Validate checks the provider registration
func (p ProviderConfig) Validate() error {
	if p.ClientID == "" || p.ClientSecret == "" {
		return fmt.Errorf("TESTAUSID_CLIENT_ID and TESTAUSID_CLIENT_SECRET are required")
	}
	if !isAbsoluteURL(p.BaseURL) {
		return fmt.Errorf("TESTAUSID_URL must be an absolute http(s) URL")
	}
	if !isAbsoluteURL(p.RedirectURI) {
		return fmt.Errorf("TESTAUSID_REDIRECT_URI must be an absolute http(s) URL")
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must not be negative")
	}
	return nil
}

// ParseSameSite maps the configured SameSite mode onto net/http
func ParseSameSite(mode string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "default":
		return http.SameSiteDefaultMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unsupported SameSite mode: %q", mode)
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
