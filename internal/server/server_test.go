package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/config"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	consolemw "github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/middleware"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/nav"
)

// userInjector stands in for the session middleware in router tests.
func userInjector(user *identity.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user != nil {
				r = r.WithContext(identity.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func testRouter(t *testing.T, user *identity.User) http.Handler {
	t.Helper()
	navService, err := NewNavService(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(RouterOptions{
		Cfg:        &config.Config{},
		Guard:      consolemw.NewGuard("/auth/sso/login", "/"),
		Nav:        navService,
		Middleware: []func(http.Handler) http.Handler{userInjector(user)},
	})
}

func TestMeWireShape(t *testing.T) {
	router := testRouter(t, &identity.User{
		UserID:          "user-1",
		Email:           "admin@example.com",
		Name:            "Admin",
		IsAuthenticated: true,
		IsAdmin:         true,
		IsOmniAdmin:     false,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"user_id", "email", "name", "is_admin", "is_omniadmin"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q: %v", key, body)
		}
	}
	if body["is_admin"] != true {
		t.Error("is_admin should be true")
	}
}

func TestMeUnauthenticated(t *testing.T) {
	router := testRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAdminRouteRedirectsNonAdminBrowserToLanding(t *testing.T) {
	// A resolved non-admin user hits an admin route from a browser and
	// lands on the default route, not the login page.
	guard := consolemw.NewGuard("/auth/sso/login", "/")
	mux := http.NewServeMux()
	mux.Handle("/admin/users", guard.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	r.Header.Set("Accept", "text/html")
	r = r.WithContext(identity.WithUser(r.Context(), &identity.User{UserID: "u1", IsAuthenticated: true}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("redirect = %q, want /", loc)
	}
	if strings.Contains(w.Header().Get("Location"), "login") {
		t.Error("under-privileged user must not be sent to login")
	}
}

func TestNavigationFiltersByRole(t *testing.T) {
	adminRouter := testRouter(t, &identity.User{UserID: "a", IsAuthenticated: true, IsAdmin: true})
	userRouter := testRouter(t, &identity.User{UserID: "u", IsAuthenticated: true})
	anonRouter := testRouter(t, nil)

	fetch := func(router http.Handler) nav.Config {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/navigation", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var cfg nav.Config
		if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	hasPath := func(cfg nav.Config, path string) bool {
		for _, cat := range cfg.Categories {
			for _, item := range cat.Items {
				if item.Path == path {
					return true
				}
			}
		}
		return false
	}

	if !hasPath(fetch(adminRouter), "/admin/users") {
		t.Error("admin should see admin items")
	}
	if hasPath(fetch(userRouter), "/admin/users") {
		t.Error("regular user should not see admin items")
	}
	anonCfg := fetch(anonRouter)
	if hasPath(anonCfg, "/dashboard") {
		t.Error("anonymous should not see protected items")
	}
	if !hasPath(anonCfg, "/") {
		t.Error("anonymous should see public items")
	}
}

func TestRuntimeConfigModes(t *testing.T) {
	fallbackCfg := &config.Config{}
	providerCfg := &config.Config{OIDC: config.OIDCConfig{
		Authority: "https://login.example.com",
		ClientID:  "console",
		Audience:  "api://console",
	}}

	w := httptest.NewRecorder()
	HandleRuntimeConfig(fallbackCfg)(w, httptest.NewRequest(http.MethodGet, "/internal/config", nil))
	var resp RuntimeConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "fallback" {
		t.Errorf("mode = %q, want fallback", resp.Mode)
	}

	w = httptest.NewRecorder()
	HandleRuntimeConfig(providerCfg)(w, httptest.NewRequest(http.MethodGet, "/internal/config", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Mode != "provider" || resp.Authority == "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Scopes) == 0 || resp.Scopes[0] != "api://console/.default" {
		t.Errorf("scopes = %v, want audience-scoped first", resp.Scopes)
	}
}
