package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/config"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	consolemw "github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/middleware"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/telemetry"
)

// RouterOptions controls the construction of the console HTTP router.
// Exactly one of Provider/Fallback is set, chosen by configuration at
// startup; the routes mounted follow from which one it is.
type RouterOptions struct {
	Cfg           *config.Config
	Authenticator *consolemw.Authenticator
	Guard         *consolemw.Guard
	Resolver      *identity.Resolver
	Provider      *identity.ProviderBackend
	Fallback      *identity.FallbackBackend
	Sessions      repository.SessionRepository
	Nav           *NavService
	Metrics       *telemetry.AuthMetrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:5174",
			"http://127.0.0.1:5174",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// NewRouter assembles the chi.Router with shared middleware, CORS policy, and
// the console handlers mounted. Session resolution runs before every guarded
// route; guards never observe a half-resolved request.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	} else if opts.Cfg != nil && len(opts.Cfg.CORSOrigins) > 0 {
		corsCfg.AllowedOrigins = opts.Cfg.CORSOrigins
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if opts.Authenticator != nil {
		r.Use(opts.Authenticator.Handler)
	}
	if opts.Metrics != nil {
		r.Use(degradedResolveCounter(opts.Metrics))
	}

	guard := opts.Guard
	if guard == nil {
		guard = consolemw.NewGuard("", "")
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.Cfg != nil {
		r.Get("/internal/config", HandleRuntimeConfig(opts.Cfg))
	}

	if opts.Provider != nil {
		r.Get("/auth/sso/login", HandleSSOLogin(opts.Provider.RelyingParty()))
		r.Get("/auth/sso/callback", HandleSSOCallback(opts.Provider, opts.Metrics))
	}
	if opts.Fallback != nil {
		r.Post("/internal/auth/dev-login", HandleDevLogin(opts.Fallback, opts.Metrics))
	}
	if opts.Resolver != nil {
		r.Post("/auth/logout", HandleLogout(opts.Cfg, opts.Resolver, opts.Provider, opts.Sessions))
	}

	if opts.Nav != nil {
		r.Get("/internal/navigation", HandleNavigation(opts.Nav))
	}

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireUser)
		r.Get("/internal/me", HandleMe())
	})

	if opts.Sessions != nil {
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireAdmin)
			r.Get("/internal/sessions", HandleListSessions(opts.Sessions))
			r.Delete("/internal/sessions/{id}", HandleRevokeSession(opts.Sessions))
			r.Delete("/internal/users/{id}/sessions", HandleRevokeUserSessions(opts.Sessions))
		})
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// degradedResolveCounter counts requests served on a claims-only profile.
// Mounted after session resolution so it sees the final principal.
func degradedResolveCounter(metrics *telemetry.AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := identity.UserFromContext(r.Context()); ok && user.Degraded {
				metrics.RecordDegradedResolve(r.Context())
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewH2CHandler wraps the router with an h2c server so HTTP/2 works over
// cleartext in development.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router := NewRouter(opts)
	return h2c.NewHandler(router, &http2.Server{}), nil
}
