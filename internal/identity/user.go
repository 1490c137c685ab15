package identity

import (
	"context"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

// User is the single resolved identity exposed to guards, handlers, and
// navigation filtering. It is replaced wholesale on every resolution, never
// patched in place.
//
// Invariant: a non-nil *User always has IsAuthenticated == true; anonymous
// requests carry a nil *User. There is no "authenticated but nil user" state.
type User struct {
	UserID          string
	Email           string
	Name            string
	IsAuthenticated bool
	IsAdmin         bool
	IsOmniAdmin     bool

	// Degraded marks a profile built from provider claims only because the
	// canonical-identity lookup failed. Degraded users never hold admin.
	Degraded bool

	// SessionID references the backing session row.
	SessionID string

	// Source records which backend produced the session.
	Source models.SessionSource
}

type userContextKey struct{}

// WithUser stores the resolved user on the request context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the resolved user from context.
// Returns (nil, false) for anonymous requests.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
