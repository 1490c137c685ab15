package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

// stubTokenSource stands in for the relying party's token operations.
type stubTokenSource struct {
	tokens        *oidc.Tokens[*oidc.IDTokenClaims]
	err           error
	endSessionURL string
}

func (s *stubTokenSource) Refresh(ctx context.Context, refreshToken string) (*oidc.Tokens[*oidc.IDTokenClaims], error) {
	return s.tokens, s.err
}

func (s *stubTokenSource) EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI string) string {
	return s.endSessionURL
}

func providerTokens(sub, email, name, refreshToken string, expiry time.Time) *oidc.Tokens[*oidc.IDTokenClaims] {
	claims := &oidc.IDTokenClaims{}
	claims.Subject = sub
	claims.Email = email
	claims.Name = name
	return &oidc.Tokens[*oidc.IDTokenClaims]{
		Token: &oauth2.Token{
			AccessToken:  "access-token",
			RefreshToken: refreshToken,
			Expiry:       expiry,
		},
		IDTokenClaims: claims,
		IDToken:       "header.payload.signature",
	}
}

func newProviderBackend(ts tokenSource, users *mockUserRepo, sessions *mockSessionRepo, events *Events) *ProviderBackend {
	return &ProviderBackend{tokens: ts, users: users, sessions: sessions, events: events}
}

func TestEstablishSessionProvisionsWithoutAdmin(t *testing.T) {
	// First login: no user record exists yet. The claims may say anything;
	// the provisioned record starts with no admin privilege.
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	backend := newProviderBackend(&stubTokenSource{}, users, sessions, NewEvents())

	tokens := providerTokens("subject-1", "new@example.com", "New User", "refresh-1", time.Now().Add(time.Hour))
	session, token, user, err := backend.EstablishSession(context.Background(), tokens, RequestMeta{UserAgent: "test"})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}

	if user.IsAdmin || user.IsOmniAdmin {
		t.Error("JIT-provisioned user must not hold admin")
	}
	if user.Subject == nil || *user.Subject != "subject-1" {
		t.Errorf("subject not recorded: %+v", user)
	}
	if user.Email != "new@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	if session.Source != models.SessionSourceProvider {
		t.Errorf("source = %q", session.Source)
	}
	if session.TokenHash != auth.HashToken(token) {
		t.Error("stored hash does not match the issued token")
	}
	if session.RefreshToken != "refresh-1" || session.IDToken == "" {
		t.Errorf("renewal material not stored: %+v", session)
	}
}

func TestEstablishSessionExistingUserKeepsFlags(t *testing.T) {
	subject := "subject-1"
	users := newMockUserRepo(&models.User{
		ID:      "user-1",
		Subject: &subject,
		Email:   "admin@example.com",
		IsAdmin: true,
	})
	sessions := newMockSessionRepo()
	backend := newProviderBackend(&stubTokenSource{}, users, sessions, NewEvents())

	tokens := providerTokens("subject-1", "admin@example.com", "Admin", "", time.Now().Add(time.Hour))
	_, _, user, err := backend.EstablishSession(context.Background(), tokens, RequestMeta{})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if user.ID != "user-1" || !user.IsAdmin {
		t.Errorf("expected the existing record, got %+v", user)
	}
	if len(users.users) != 1 {
		t.Errorf("no second record should be provisioned, have %d", len(users.users))
	}
}

func TestEstablishSessionMissingSubject(t *testing.T) {
	backend := newProviderBackend(&stubTokenSource{}, newMockUserRepo(), newMockSessionRepo(), NewEvents())

	tokens := providerTokens("", "x@example.com", "X", "", time.Now().Add(time.Hour))
	_, _, _, err := backend.EstablishSession(context.Background(), tokens, RequestMeta{})
	if !errors.Is(err, ErrCallback) {
		t.Fatalf("expected ErrCallback, got %v", err)
	}
}

func TestEstablishSessionFloorsStaleExpiry(t *testing.T) {
	backend := newProviderBackend(&stubTokenSource{}, newMockUserRepo(), newMockSessionRepo(), NewEvents())

	tokens := providerTokens("subject-1", "x@example.com", "X", "", time.Now().Add(-time.Minute))
	session, _, _, err := backend.EstablishSession(context.Background(), tokens, RequestMeta{})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if !session.Live(time.Now()) {
		t.Error("session must outlive the exchange even with a stale provider expiry")
	}
}

func TestRenewFailureRevokesSessionAndEmits(t *testing.T) {
	session := &models.Session{
		ID:           "session-1",
		UserID:       "user-1",
		Source:       models.SessionSourceProvider,
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}
	sessions := newMockSessionRepo(session)
	events := NewEvents()
	var received []Event
	events.Subscribe(func(ev Event) { received = append(received, ev) })

	backend := newProviderBackend(&stubTokenSource{err: errors.New("grant rejected")}, newMockUserRepo(), sessions, events)

	err := backend.Renew(context.Background(), session)
	if !errors.Is(err, ErrSilentRenewal) {
		t.Fatalf("expected ErrSilentRenewal, got %v", err)
	}

	if len(sessions.revoked) != 1 || sessions.revoked[0] != "session-1" {
		t.Errorf("failed renewal must revoke the session, revoked = %v", sessions.revoked)
	}
	if len(received) != 1 || received[0].Type != EventSilentRenewError {
		t.Fatalf("expected one SilentRenewError event, got %v", received)
	}
	if received[0].Err == nil || received[0].SessionID != "session-1" {
		t.Errorf("event missing failure context: %+v", received[0])
	}
}

func TestRenewSuccessUpdatesTokensAndFloorsExpiry(t *testing.T) {
	session := &models.Session{
		ID:           "session-1",
		UserID:       "user-1",
		Source:       models.SessionSourceProvider,
		IDToken:      "old-id-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}
	sessions := newMockSessionRepo(session)
	events := NewEvents()
	var received []Event
	events.Subscribe(func(ev Event) { received = append(received, ev) })

	// Provider rotates the refresh token and reports an expiry that is
	// already in the past by the time the response lands.
	renewed := providerTokens("subject-1", "x@example.com", "X", "refresh-2", time.Now().Add(-time.Second))
	backend := newProviderBackend(&stubTokenSource{tokens: renewed}, newMockUserRepo(), sessions, events)

	if err := backend.Renew(context.Background(), session); err != nil {
		t.Fatalf("Renew: %v", err)
	}

	if session.RefreshToken != "refresh-2" {
		t.Errorf("rotated refresh token not kept: %q", session.RefreshToken)
	}
	if session.IDToken == "old-id-token" {
		t.Error("ID token not replaced")
	}
	if !session.Live(time.Now()) {
		t.Error("renewed session must be live even with a stale provider expiry")
	}
	if len(received) != 1 || received[0].Type != EventUserLoaded || !received[0].Renewed {
		t.Fatalf("expected a renewal-marked UserLoaded event, got %v", received)
	}
	if len(sessions.revoked) != 0 {
		t.Errorf("successful renewal must not revoke, revoked = %v", sessions.revoked)
	}
}

func TestRenewKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	session := &models.Session{
		ID:           "session-1",
		UserID:       "user-1",
		Source:       models.SessionSourceProvider,
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}
	sessions := newMockSessionRepo(session)

	renewed := providerTokens("subject-1", "x@example.com", "X", "", time.Now().Add(time.Hour))
	backend := newProviderBackend(&stubTokenSource{tokens: renewed}, newMockUserRepo(), sessions, NewEvents())

	if err := backend.Renew(context.Background(), session); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if session.RefreshToken != "refresh-1" {
		t.Errorf("refresh token must survive a non-rotating renewal, got %q", session.RefreshToken)
	}
}

func TestProviderLogoutRevokesAndEmits(t *testing.T) {
	session := &models.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Source:    models.SessionSourceProvider,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	sessions := newMockSessionRepo(session)
	events := NewEvents()
	var received []Event
	events.Subscribe(func(ev Event) { received = append(received, ev) })

	backend := newProviderBackend(&stubTokenSource{endSessionURL: "https://login.example.com/logout"}, newMockUserRepo(), sessions, events)

	if err := backend.Logout(context.Background(), session); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 {
		t.Errorf("logout must revoke, revoked = %v", sessions.revoked)
	}
	if len(received) != 1 || received[0].Type != EventUserSignedOut {
		t.Fatalf("expected UserSignedOut, got %v", received)
	}
}

func TestSignOutURLRequiresIDToken(t *testing.T) {
	backend := newProviderBackend(&stubTokenSource{endSessionURL: "https://login.example.com/logout"}, newMockUserRepo(), newMockSessionRepo(), NewEvents())

	session := &models.Session{ID: "session-1", Source: models.SessionSourceProvider, IDToken: "idt"}
	if got := backend.SignOutURL(context.Background(), session, "https://console.example.com"); got == "" {
		t.Error("session with an ID token should yield the provider sign-out URL")
	}
	if got := backend.SignOutURL(context.Background(), &models.Session{ID: "s2"}, ""); got != "" {
		t.Errorf("no ID token means local cleanup only, got %q", got)
	}
}
