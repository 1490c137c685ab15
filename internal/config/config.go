package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrConfig marks required provider settings absent while provider mode is
// requested. Raised at startup, never deferred to a silent no-op at runtime.
var ErrConfig = errors.New("incomplete auth configuration")

// Config holds the application configuration. It is loaded once at process
// start and passed by reference; nothing mutates it afterward. Changing auth
// settings requires a restart; there is no hot-swap mid-session.
type Config struct {
	// Database connection string (DSN). Postgres or SQLite, detected by prefix.
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of the console API
	ServerURL string

	// Allowed CORS origins for the webapp (comma separated in env)
	CORSOrigins []string

	// Path to an integrator navigation patch file (YAML). Optional.
	NavPatchPath string

	// Enable debug logging
	Debug bool

	// OIDC holds the federated identity provider settings. When Provider
	// mode is disabled the dev-login fallback backend is active instead.
	OIDC OIDCConfig
}

// OIDCConfig configures the console as an OIDC relying party against an
// external identity provider (Keycloak, Entra ID, Okta, ...).
//
// Provider mode is enabled iff Authority is set. When enabled, ClientID and
// RedirectURI are mandatory; a partial configuration is a startup error, never
// a silent no-op.
type OIDCConfig struct {
	// Authority is the provider's issuer URL. Empty means fallback mode.
	Authority string

	// ClientID registered with the provider.
	ClientID string

	// ClientSecret for confidential clients. Optional for public clients
	// using PKCE only.
	ClientSecret string

	// RedirectURI is the SSO callback URL
	// (e.g. "https://console.example.com/auth/sso/callback").
	RedirectURI string

	// BaseScopes requested from the provider. Defaults to
	// ["openid", "profile", "email"].
	BaseScopes []string

	// Audience, when set, scopes the issued access token to a resource
	// server. See Scopes() for the composition rule.
	Audience string

	// RenewalLeadTime is how far before expiry silent renewal runs, in
	// seconds. Defaults to 60.
	RenewalLeadSeconds int
}

// Enabled reports whether provider mode is configured.
func (c *OIDCConfig) Enabled() bool {
	return c.Authority != ""
}

// Scopes returns the effective scope list. When an Audience is configured it
// is prepended as "<audience>/.default" ahead of the base scopes, the form
// providers require for audience-scoped access tokens.
func (c *OIDCConfig) Scopes() []string {
	base := c.BaseScopes
	if len(base) == 0 {
		base = []string{"openid", "profile", "email"}
	}
	if c.Audience == "" {
		return base
	}
	scopes := make([]string, 0, len(base)+1)
	scopes = append(scopes, c.Audience+"/.default")
	scopes = append(scopes, base...)
	return scopes
}

// Load reads configuration from environment variables with fallback defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", "file:console.db"),
		ServerAddr:   getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:    getEnv("SERVER_URL", "http://localhost:8080"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		NavPatchPath: getEnv("NAV_PATCH_PATH", ""),
		Debug:        getEnvBool("DEBUG", false),
		OIDC: OIDCConfig{
			Authority:          getEnv("OIDC_AUTHORITY", ""),
			ClientID:           getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret:       getEnv("OIDC_CLIENT_SECRET", ""),
			RedirectURI:        getEnv("OIDC_REDIRECT_URI", ""),
			BaseScopes:         splitList(getEnv("OIDC_SCOPE", "")),
			Audience:           getEnv("OIDC_AUDIENCE", ""),
			RenewalLeadSeconds: getEnvInt("OIDC_RENEWAL_LEAD_SECONDS", 60),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}

	// Provider mode must be fully configured or not at all. A half-configured
	// provider would otherwise surface as "loading finished, no user, no
	// network activity", which is impossible to diagnose from the webapp.
	if cfg.OIDC.Enabled() {
		if cfg.OIDC.ClientID == "" {
			return nil, fmt.Errorf("%w: OIDC_CLIENT_ID is required when OIDC_AUTHORITY is set", ErrConfig)
		}
		if cfg.OIDC.RedirectURI == "" {
			return nil, fmt.Errorf("%w: OIDC_REDIRECT_URI is required when OIDC_AUTHORITY is set", ErrConfig)
		}
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// splitList splits a comma-separated env value into trimmed entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
