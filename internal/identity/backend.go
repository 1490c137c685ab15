package identity

import (
	"context"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

// SessionBackend is the capability set shared by the two auth backends
// (provider and fallback). Exactly one backend is active per deployment,
// selected by configuration at startup; call sites depend on this interface
// instead of branching on the auth mode.
type SessionBackend interface {
	// Source identifies which backend this is.
	Source() models.SessionSource

	// Lookup resolves a bearer token to a live session. Expired or revoked
	// sessions are treated identically to no session at all: the result is
	// (nil, nil). Errors are store failures only.
	Lookup(ctx context.Context, token string) (*models.Session, error)

	// Logout terminates the given session and emits UserSignedOut.
	Logout(ctx context.Context, session *models.Session) error
}

// RequestMeta carries per-request attribution recorded on new sessions.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

func (m RequestMeta) userAgentPtr() *string {
	if m.UserAgent == "" {
		return nil
	}
	ua := m.UserAgent
	return &ua
}

func (m RequestMeta) ipAddressPtr() *string {
	if m.IPAddress == "" {
		return nil
	}
	ip := m.IPAddress
	return &ip
}
