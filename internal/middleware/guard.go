package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
)

// Role is the minimum privilege a guarded route demands.
type Role string

const (
	RoleAuthenticated Role = "authenticated"
	RoleAdmin         Role = "admin"
)

// Guard produces route middleware parameterized by minimum role. Anonymous
// browser requests are bounced to the login entry point with the original
// path preserved; authenticated-but-underprivileged requests go to the
// default landing route instead, never back to login (the user has a session,
// re-authenticating cannot help).
type Guard struct {
	LoginPath   string
	LandingPath string
}

// NewGuard creates a guard with the console's entry points.
func NewGuard(loginPath, landingPath string) *Guard {
	if loginPath == "" {
		loginPath = "/auth/sso/login"
	}
	if landingPath == "" {
		landingPath = "/"
	}
	return &Guard{LoginPath: loginPath, LandingPath: landingPath}
}

// RequireUser admits any authenticated user.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return g.require(RoleAuthenticated, next)
}

// RequireAdmin admits admins and omni-admins only.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.require(RoleAdmin, next)
}

// Require returns the middleware for an arbitrary minimum role.
func (g *Guard) Require(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.require(min, next)
	}
}

func (g *Guard) require(min Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := identity.UserFromContext(r.Context())
		if !ok {
			if wantsHTML(r) {
				target := g.LoginPath + "?redirect_uri=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			denyJSON(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if min == RoleAdmin && !user.IsAdmin && !user.IsOmniAdmin {
			if wantsHTML(r) {
				http.Redirect(w, r, g.LandingPath, http.StatusFound)
				return
			}
			denyJSON(w, http.StatusForbidden, "admin role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
