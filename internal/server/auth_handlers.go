package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/config"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/telemetry"
)

// UserResponse is the wire shape for the current user.
type UserResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsAdmin     bool   `json:"is_admin"`
	IsOmniAdmin bool   `json:"is_omniadmin"`
	Degraded    bool   `json:"degraded,omitempty"`
}

func userResponse(user *identity.User) UserResponse {
	return UserResponse{
		UserID:      user.UserID,
		Email:       user.Email,
		Name:        user.Name,
		IsAdmin:     user.IsAdmin,
		IsOmniAdmin: user.IsOmniAdmin,
		Degraded:    user.Degraded,
	}
}

func requestMeta(r *http.Request) identity.RequestMeta {
	return identity.RequestMeta{
		UserAgent: r.UserAgent(),
		IPAddress: r.RemoteAddr,
	}
}

// HandleSSOLogin initiates the OIDC Authorization Code Flow. An optional
// redirect_uri query parameter names where to land after the callback; it is
// kept in a short-lived cookie, separate from the state/PKCE cookies the
// library manages.
func HandleSSOLogin(rpAuth *auth.RelyingParty) http.HandlerFunc {
	libraryAuthHandler := rp.AuthURLHandler(func() string {
		state, _ := auth.GenerateNonce()
		return state
	}, rpAuth.RP())
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectURI := r.URL.Query().Get("redirect_uri"); redirectURI != "" {
			auth.SetRedirectURICookie(w, r, redirectURI)
		}
		// The library handler generates the PKCE challenge, stores verifier
		// and state in cookies, and redirects to the authorization endpoint.
		libraryAuthHandler.ServeHTTP(w, r)
	}
}

// HandleSSOCallback completes the code exchange and establishes a session.
// State and PKCE validation happen inside the library's CodeExchangeHandler
// before our callback runs; a failed exchange never creates a session.
func HandleSSOCallback(backend *identity.ProviderBackend, metrics *telemetry.AuthMetrics) http.HandlerFunc {
	codeExchangeCallback := func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], state string, provider rp.RelyingParty) {
		ctx := r.Context()

		session, token, _, err := backend.EstablishSession(ctx, tokens, requestMeta(r))
		if err != nil {
			log.Printf("SSO callback: %v", err)
			if metrics != nil {
				metrics.RecordLogin(ctx, string(models.SessionSourceProvider), false)
			}
			http.Error(w, "Sign-in failed, please retry", http.StatusInternalServerError)
			return
		}
		if metrics != nil {
			metrics.RecordLogin(ctx, string(models.SessionSourceProvider), true)
		}

		auth.WriteSessionCookie(w, r, token, session.ExpiresAt)

		redirectURI := auth.GetRedirectURICookie(w, r)
		if redirectURI == "" {
			redirectURI = "/"
		}
		http.Redirect(w, r, redirectURI, http.StatusFound)
	}
	return rp.CodeExchangeHandler(codeExchangeCallback, backend.RelyingParty().RP())
}

// DevLoginRequest is the fallback-mode login payload.
type DevLoginRequest struct {
	Email string `json:"email"`
}

// DevLoginResponse returns the bearer token and the resolved user.
type DevLoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   int64        `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// HandleDevLogin authenticates by email against the registered users. Only
// mounted when provider mode is disabled.
func HandleDevLogin(backend *identity.FallbackBackend, metrics *telemetry.AuthMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req DevLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" {
			writeError(w, http.StatusBadRequest, "missing email")
			return
		}

		session, token, user, err := backend.Login(ctx, req.Email, requestMeta(r))
		if err != nil {
			if metrics != nil {
				metrics.RecordLogin(ctx, string(models.SessionSourceFallback), false)
			}
			if errors.Is(err, identity.ErrUnknownUser) {
				writeError(w, http.StatusNotFound, "no user registered for this email")
				return
			}
			log.Printf("dev login: %v", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		if metrics != nil {
			metrics.RecordLogin(ctx, string(models.SessionSourceFallback), true)
		}

		auth.WriteSessionCookie(w, r, token, session.ExpiresAt)

		writeJSON(w, http.StatusOK, DevLoginResponse{
			AccessToken: token,
			ExpiresAt:   session.ExpiresAt.UnixMilli(),
			User: UserResponse{
				UserID:      user.ID,
				Email:       user.Email,
				Name:        user.Name,
				IsAdmin:     user.IsAdmin,
				IsOmniAdmin: user.IsOmniAdmin,
			},
		})
	}
}

// HandleLogout ends the current session and clears the cookie. In provider
// mode browsers are redirected to the provider's end-session endpoint when it
// advertises one; API clients receive the URL to visit instead.
func HandleLogout(
	cfg *config.Config,
	resolver *identity.Resolver,
	provider *identity.ProviderBackend,
	sessions repository.SessionRepository,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, ok := identity.UserFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, "no active session")
			return
		}

		var session *models.Session
		if user.SessionID != "" {
			var err error
			session, err = sessions.GetByID(ctx, user.SessionID)
			if err != nil {
				log.Printf("logout: load session %s: %v", user.SessionID, err)
			}
		}
		if session != nil {
			if err := resolver.Logout(ctx, session); err != nil {
				log.Printf("logout: %v", err)
				writeError(w, http.StatusInternalServerError, "logout failed")
				return
			}
		}

		auth.ClearSessionCookie(w, r)

		signOutURL := ""
		if provider != nil {
			signOutURL = provider.SignOutURL(ctx, session, cfg.ServerURL)
		}
		if signOutURL != "" && wantsHTML(r) {
			http.Redirect(w, r, signOutURL, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"logout_url": signOutURL})
	}
}

// HandleMe returns the resolved current user. The non-2xx cases (no cookie,
// dead session) drive the client's anonymous state.
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := identity.UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		writeJSON(w, http.StatusOK, userResponse(user))
	}
}

// RuntimeConfigResponse tells the webapp how to authenticate.
type RuntimeConfigResponse struct {
	Mode      string   `json:"mode"` // "provider" or "fallback"
	Authority string   `json:"authority,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Audience  string   `json:"audience,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

// HandleRuntimeConfig returns the auth configuration discovery document.
func HandleRuntimeConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := RuntimeConfigResponse{Mode: "fallback"}
		if cfg.OIDC.Enabled() {
			resp = RuntimeConfigResponse{
				Mode:      "provider",
				Authority: cfg.OIDC.Authority,
				ClientID:  cfg.OIDC.ClientID,
				Audience:  cfg.OIDC.Audience,
				Scopes:    cfg.OIDC.Scopes(),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
