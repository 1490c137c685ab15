package config

import (
	"errors"
	"reflect"
	"testing"
)

func clearOIDCEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OIDC_AUTHORITY", "OIDC_CLIENT_ID", "OIDC_CLIENT_SECRET",
		"OIDC_REDIRECT_URI", "OIDC_SCOPE", "OIDC_AUDIENCE",
		"OIDC_RENEWAL_LEAD_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearOIDCEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("SERVER_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerAddr != "localhost:8080" {
		t.Errorf("ServerAddr = %q", cfg.ServerAddr)
	}
	if cfg.OIDC.Enabled() {
		t.Error("provider mode should be disabled without OIDC_AUTHORITY")
	}
	if cfg.OIDC.RenewalLeadSeconds != 60 {
		t.Errorf("RenewalLeadSeconds = %d, want 60", cfg.OIDC.RenewalLeadSeconds)
	}
}

func TestLoadProviderModeComplete(t *testing.T) {
	clearOIDCEnv(t)
	t.Setenv("OIDC_AUTHORITY", "https://login.example.com/tenant")
	t.Setenv("OIDC_CLIENT_ID", "console-webapp")
	t.Setenv("OIDC_REDIRECT_URI", "http://localhost:8080/auth/sso/callback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OIDC.Enabled() {
		t.Fatal("provider mode should be enabled")
	}
}

func TestLoadProviderModePartialFails(t *testing.T) {
	// Authority without client ID or redirect URI must fail at startup, not
	// silently run a broken provider.
	cases := map[string]map[string]string{
		"missing client id": {
			"OIDC_AUTHORITY":    "https://login.example.com/tenant",
			"OIDC_REDIRECT_URI": "http://localhost:8080/auth/sso/callback",
		},
		"missing redirect uri": {
			"OIDC_AUTHORITY": "https://login.example.com/tenant",
			"OIDC_CLIENT_ID": "console-webapp",
		},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearOIDCEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestScopesDefault(t *testing.T) {
	c := &OIDCConfig{}
	want := []string{"openid", "profile", "email"}
	if got := c.Scopes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Scopes() = %v, want %v", got, want)
	}
}

func TestScopesAudiencePrepended(t *testing.T) {
	c := &OIDCConfig{
		Audience:   "api://console-backend",
		BaseScopes: []string{"openid", "profile"},
	}
	got := c.Scopes()
	want := []string{"api://console-backend/.default", "openid", "profile"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scopes() = %v, want %v", got, want)
	}
}

func TestScopesAudienceWithDefaultBase(t *testing.T) {
	c := &OIDCConfig{Audience: "api://console-backend"}
	got := c.Scopes()
	if got[0] != "api://console-backend/.default" {
		t.Errorf("first scope = %q, want audience/.default", got[0])
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want audience + 3 default scopes", len(got))
	}
}
