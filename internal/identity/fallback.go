package identity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// FallbackBackend is the SessionBackend for deployments without a federated
// identity provider (development, self-hosted). Login trades an email for a
// bearer token. There is no password, no provider round-trip and no renewal;
// tokens simply expire and the caller logs in again.
type FallbackBackend struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	events   *Events
}

// NewFallbackBackend creates the fallback-mode backend.
func NewFallbackBackend(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	events *Events,
) *FallbackBackend {
	return &FallbackBackend{users: users, sessions: sessions, events: events}
}

// Source identifies this backend.
func (b *FallbackBackend) Source() models.SessionSource {
	return models.SessionSourceFallback
}

// Login creates a session for the user registered under the given email.
// Unknown emails fail with ErrUnknownUser so callers can message that case
// distinctly from store failures.
func (b *FallbackBackend) Login(ctx context.Context, email string, meta RequestMeta) (*models.Session, string, *models.User, error) {
	user, err := b.users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	if user.DisabledAt != nil {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	_ = b.users.UpdateLastLogin(ctx, user.ID)

	token, tokenHash, err := auth.GenerateBearerToken()
	if err != nil {
		return nil, "", nil, fmt.Errorf("initialize session: %w", err)
	}

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: tokenHash,
		Source:    models.SessionSourceFallback,
		ExpiresAt: time.Now().Add(auth.FallbackSessionDuration),
		UserAgent: meta.userAgentPtr(),
		IPAddress: meta.ipAddressPtr(),
	}
	if err := b.sessions.Create(ctx, session); err != nil {
		return nil, "", nil, fmt.Errorf("create session: %w", err)
	}

	b.events.Emit(Event{Type: EventUserLoaded, SessionID: session.ID, UserID: user.ID})
	return session, token, user, nil
}

// Lookup resolves a bearer token to a live fallback session. Expired rows are
// purged eagerly on read, lazy cleanup instead of a background timer.
func (b *FallbackBackend) Lookup(ctx context.Context, token string) (*models.Session, error) {
	session, err := b.sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if !session.Live(time.Now()) {
		if err := b.sessions.Delete(ctx, session.ID); err != nil {
			log.Printf("purge expired session %s: %v", session.ID, err)
		}
		return nil, nil
	}
	return session, nil
}

// Logout deletes the session synchronously and emits UserSignedOut.
func (b *FallbackBackend) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	if err := b.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	b.events.Emit(Event{Type: EventUserSignedOut, SessionID: session.ID, UserID: session.UserID})
	return nil
}
