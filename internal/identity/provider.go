package identity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// minProviderSessionDuration guards against providers issuing tokens that are
// already at (or past) expiry by the time the exchange completes.
const minProviderSessionDuration = 30 * time.Second

// tokenSource is the slice of the relying party the backend calls after
// login: the refresh-token grant and the end-session URL. *auth.RelyingParty
// satisfies it; tests substitute a stub.
type tokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (*oidc.Tokens[*oidc.IDTokenClaims], error)
	EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI string) string
}

// ProviderBackend is the SessionBackend for federated identity provider mode.
// It owns session establishment from a completed code exchange, silent
// renewal via the refresh-token grant, and provider-aware sign-out.
type ProviderBackend struct {
	rp       *auth.RelyingParty
	tokens   tokenSource
	users    repository.UserRepository
	sessions repository.SessionRepository
	events   *Events
}

// NewProviderBackend creates the provider-mode backend.
func NewProviderBackend(
	rp *auth.RelyingParty,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	events *Events,
) *ProviderBackend {
	return &ProviderBackend{rp: rp, tokens: rp, users: users, sessions: sessions, events: events}
}

// Source identifies this backend.
func (b *ProviderBackend) Source() models.SessionSource {
	return models.SessionSourceProvider
}

// RelyingParty exposes the wrapped relying party for the HTTP login/callback
// handlers, which delegate flow mechanics to the OIDC library.
func (b *ProviderBackend) RelyingParty() *auth.RelyingParty {
	return b.rp
}

// EstablishSession turns a verified token exchange into a console session.
// The user record is provisioned just-in-time from the verified ID-token
// claims; admin flags are never taken from claims, so a freshly provisioned
// user starts with no elevated privilege.
//
// Returns the session, the plaintext bearer token (the only copy; the store
// keeps the hash), and the canonical user.
func (b *ProviderBackend) EstablishSession(
	ctx context.Context,
	tokens *oidc.Tokens[*oidc.IDTokenClaims],
	meta RequestMeta,
) (*models.Session, string, *models.User, error) {
	claims := tokens.IDTokenClaims
	if claims == nil || claims.Subject == "" {
		return nil, "", nil, fmt.Errorf("%w: token exchange returned no subject", ErrCallback)
	}

	user, err := b.users.GetBySubject(ctx, claims.Subject)
	if err != nil || user == nil {
		// JIT provisioning for first login.
		subject := claims.Subject
		user = &models.User{
			Subject: &subject,
			Email:   claims.Email,
			Name:    claims.Name,
		}
		if err := b.users.Create(ctx, user); err != nil {
			return nil, "", nil, fmt.Errorf("provision user: %w", err)
		}
	}
	_ = b.users.UpdateLastLogin(ctx, user.ID)

	token, tokenHash, err := auth.GenerateBearerToken()
	if err != nil {
		return nil, "", nil, fmt.Errorf("initialize session: %w", err)
	}

	session := &models.Session{
		UserID:       user.ID,
		TokenHash:    tokenHash,
		Source:       models.SessionSourceProvider,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    clampExpiry(tokens.Expiry),
		UserAgent:    meta.userAgentPtr(),
		IPAddress:    meta.ipAddressPtr(),
	}
	if err := b.sessions.Create(ctx, session); err != nil {
		return nil, "", nil, fmt.Errorf("create session: %w", err)
	}

	b.events.Emit(Event{Type: EventUserLoaded, SessionID: session.ID, UserID: user.ID})
	return session, token, user, nil
}

// Lookup resolves a bearer token to a live provider session.
func (b *ProviderBackend) Lookup(ctx context.Context, token string) (*models.Session, error) {
	session, err := b.sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil || !session.Live(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// Renew refreshes the session's tokens via the refresh-token grant. On any
// failure the session is revoked locally (fail closed rather than keep
// serving a token the provider may no longer stand behind) and a
// SilentRenewError event fires.
func (b *ProviderBackend) Renew(ctx context.Context, session *models.Session) error {
	tokens, err := b.tokens.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if revokeErr := b.sessions.Revoke(ctx, session.ID); revokeErr != nil {
			log.Printf("revoke session %s after failed renewal: %v", session.ID, revokeErr)
		}
		b.events.Emit(Event{
			Type:      EventSilentRenewError,
			SessionID: session.ID,
			UserID:    session.UserID,
			Err:       err,
		})
		return fmt.Errorf("%w: %v", ErrSilentRenewal, err)
	}

	session.IDToken = tokens.IDToken
	if tokens.RefreshToken != "" {
		// Providers may rotate the refresh token; keep the old one otherwise.
		session.RefreshToken = tokens.RefreshToken
	}
	session.ExpiresAt = clampExpiry(tokens.Expiry)
	if err := b.sessions.UpdateTokens(ctx, session); err != nil {
		return fmt.Errorf("persist renewed session: %w", err)
	}

	b.events.Emit(Event{Type: EventUserLoaded, SessionID: session.ID, UserID: session.UserID, Renewed: true})
	return nil
}

// clampExpiry floors a provider-reported expiry so a token already at (or
// past) expiry by the time it reaches us does not kill the session instantly.
func clampExpiry(expiresAt time.Time) time.Time {
	if time.Until(expiresAt) < minProviderSessionDuration {
		return time.Now().Add(minProviderSessionDuration)
	}
	return expiresAt
}

// Logout revokes the session locally and emits UserSignedOut. The HTTP layer
// additionally redirects to SignOutURL when the provider advertises one.
func (b *ProviderBackend) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	if err := b.sessions.Revoke(ctx, session.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	b.events.Emit(Event{Type: EventUserSignedOut, SessionID: session.ID, UserID: session.UserID})
	return nil
}

// SignOutURL returns the provider end-session URL for the given session, or
// "" when the provider has none and local cleanup is all there is.
func (b *ProviderBackend) SignOutURL(ctx context.Context, session *models.Session, postLogoutRedirectURI string) string {
	if session == nil || session.IDToken == "" {
		return ""
	}
	return b.tokens.EndSessionURL(ctx, session.IDToken, postLogoutRedirectURI)
}
