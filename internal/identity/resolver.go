package identity

import (
	"context"
	"fmt"
	"log"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/auth"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// Resolver turns a live session into the resolved User handed to guards and
// handlers. The canonical user store is authoritative for identity and role
// flags; provider claims are only a degraded stand-in when that store is
// unreachable.
type Resolver struct {
	users   repository.UserRepository
	backend SessionBackend
	events  *Events
}

// NewResolver creates a resolver bound to the active backend.
func NewResolver(users repository.UserRepository, backend SessionBackend, events *Events) *Resolver {
	return &Resolver{users: users, backend: backend, events: events}
}

// Backend returns the active session backend.
func (r *Resolver) Backend() SessionBackend {
	return r.backend
}

// Resolve builds the User for a live session. For provider sessions, a failed
// canonical lookup degrades to a claims-only profile with every privilege flag
// forced false. Fallback sessions have no claims to fall back on, so a failed
// lookup there resolves to anonymous.
func (r *Resolver) Resolve(ctx context.Context, session *models.Session) *User {
	if session == nil {
		return nil
	}

	record, err := r.users.GetByID(ctx, session.UserID)
	if err == nil && record != nil {
		if record.DisabledAt != nil {
			return nil
		}
		return &User{
			UserID:          record.ID,
			Email:           record.Email,
			Name:            record.Name,
			IsAuthenticated: true,
			IsAdmin:         record.IsAdmin,
			IsOmniAdmin:     record.IsOmniAdmin,
			SessionID:       session.ID,
			Source:          session.Source,
		}
	}

	if session.Source != models.SessionSourceProvider || session.IDToken == "" {
		return nil
	}

	// Canonical store unreachable. Keep the session usable with whatever the
	// verified ID token asserted, but never grant admin from claims.
	log.Printf("resolve user %s: %v", session.UserID, fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
	profile, perr := auth.ProfileFromIDToken(session.IDToken)
	if perr != nil {
		log.Printf("decode id token for session %s: %v", session.ID, perr)
		return nil
	}
	return &User{
		UserID:          session.UserID,
		Email:           profile.Email,
		Name:            profile.Name,
		IsAuthenticated: true,
		IsAdmin:         false,
		IsOmniAdmin:     false,
		Degraded:        true,
		SessionID:       session.ID,
		Source:          session.Source,
	}
}

// ResolveToken is the request-path entry: bearer token in, resolved user out.
// Any miss along the way (unknown token, dead session, unresolvable user)
// yields (nil, nil): the request proceeds anonymously. Store failures are
// surfaced so middleware can distinguish "not logged in" from "store down".
func (r *Resolver) ResolveToken(ctx context.Context, token string) (*User, *models.Session, error) {
	session, err := r.backend.Lookup(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if session == nil {
		return nil, nil, nil
	}
	return r.Resolve(ctx, session), session, nil
}

// RefreshUser re-runs resolution for a session already in hand, picking up
// role or profile changes made since the session was last resolved. Callers
// holding a cached User swap it for the returned one.
func (r *Resolver) RefreshUser(ctx context.Context, session *models.Session) *User {
	return r.Resolve(ctx, session)
}

// Logout ends the session through the active backend.
func (r *Resolver) Logout(ctx context.Context, session *models.Session) error {
	return r.backend.Logout(ctx, session)
}
