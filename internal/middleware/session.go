// Package middleware carries the request-path auth chain: session resolution
// first, then role guards. Guards always observe a fully resolved principal
// (or none); there is no ordering where a guard runs against a half-resolved
// request.
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/config"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/identity"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// Authenticator resolves the current user for every request. It accepts the
// session cookie, an opaque bearer token (same lookup), and, in provider
// mode, a provider-issued JWT verified against the authority.
type Authenticator struct {
	resolver *identity.Resolver
	sessions repository.SessionRepository
	users    repository.UserRepository
	jwt      *oidctoken.TokenHandler[map[string]any]
}

// NewAuthenticator builds the session middleware. The JWT handler is only
// constructed in provider mode; fallback deployments have no authority to
// verify against.
func NewAuthenticator(
	cfg *config.Config,
	resolver *identity.Resolver,
	sessions repository.SessionRepository,
	users repository.UserRepository,
) (*Authenticator, error) {
	a := &Authenticator{resolver: resolver, sessions: sessions, users: users}

	if cfg.OIDC.Enabled() {
		opts := []options.Option{
			options.WithIssuer(cfg.OIDC.Authority),
			options.WithRequiredAudience(cfg.OIDC.ClientID),
		}
		handler, err := oidctoken.New[map[string]any](nil, opts...)
		if err != nil {
			return nil, err
		}
		a.jwt = handler
	}
	return a, nil
}

// Handler resolves the request's credentials and stores the user on the
// context. Requests without credentials, or with dead ones, proceed
// anonymously; rejecting them is the guards' job, not this middleware's.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := auth.BearerFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, session, err := a.resolver.ResolveToken(ctx, token)
		if err != nil {
			log.Printf("resolve session: %v", err)
		}
		if user == nil && a.jwt != nil && strings.Count(token, ".") == 2 {
			user = a.resolveJWT(ctx, token)
		}
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}

		if session != nil {
			a.touchSession(session.ID)
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUser(ctx, user)))
	})
}

// resolveJWT verifies a provider-issued JWT and resolves its subject against
// the canonical user store. A store failure degrades to a claims-only profile
// with no admin privilege, same as session resolution.
func (a *Authenticator) resolveJWT(ctx context.Context, token string) *identity.User {
	claims, err := a.jwt.ParseToken(ctx, strings.TrimSpace(token))
	if err != nil {
		log.Printf("verify bearer token: %v", err)
		return nil
	}
	profile, err := auth.DecodeProfile(claims)
	if err != nil {
		log.Printf("decode bearer claims: %v", err)
		return nil
	}

	record, err := a.users.GetBySubject(ctx, profile.Subject)
	if err == nil && record != nil {
		if record.DisabledAt != nil {
			return nil
		}
		_ = a.users.UpdateLastLogin(ctx, record.ID)
		return &identity.User{
			UserID:          record.ID,
			Email:           record.Email,
			Name:            record.Name,
			IsAuthenticated: true,
			IsAdmin:         record.IsAdmin,
			IsOmniAdmin:     record.IsOmniAdmin,
			Source:          models.SessionSourceProvider,
		}
	}

	log.Printf("resolve bearer subject %s: %v", profile.Subject, err)
	return &identity.User{
		UserID:          profile.Subject,
		Email:           profile.Email,
		Name:            profile.Name,
		IsAuthenticated: true,
		Degraded:        true,
		Source:          models.SessionSourceProvider,
	}
}

// touchSession records activity best-effort, off the request path.
func (a *Authenticator) touchSession(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.sessions.UpdateLastUsed(ctx, sessionID); err != nil {
			log.Printf("warning: failed to update session last_used: %v", err)
		}
	}()
}
