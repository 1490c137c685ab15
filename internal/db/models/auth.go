package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SessionSource identifies which auth backend produced a session.
type SessionSource string

const (
	// SessionSourceProvider marks sessions established via the federated
	// identity provider (OIDC authorization code flow).
	SessionSourceProvider SessionSource = "provider"

	// SessionSourceFallback marks sessions established via the dev-login
	// fallback (email only, non-production).
	SessionSourceFallback SessionSource = "fallback"
)

// User represents the canonical identity record for a console user.
// Created on first login (JIT provisioning in provider mode, seeded via the
// CLI in fallback mode).
// In provider mode the Subject field stores the upstream OIDC subject.
// The admin flags here are authoritative; provider claims are never
// trusted for authorization.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	// IDs are generated client-side (UUIDv7) so SQLite deployments need no
	// uuid extension; the Postgres migration adds a server-side default too.
	ID          string     `bun:"id,pk,type:uuid"`
	Subject     *string    `bun:"subject,unique"` // Optional OIDC subject
	Email       string     `bun:"email,notnull,unique"`
	Name        string     `bun:"name"`
	IsAdmin     bool       `bun:"is_admin,notnull,default:false"`
	IsOmniAdmin bool       `bun:"is_omniadmin,notnull,default:false"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt *time.Time `bun:"last_login_at"`
	DisabledAt  *time.Time `bun:"disabled_at"`
}

// PrincipalSubject returns the stable identifier for the user.
// Falls back to the database ID when no upstream subject exists (fallback mode).
func (u *User) PrincipalSubject() string {
	if u == nil {
		return ""
	}
	if u.Subject != nil && *u.Subject != "" {
		return *u.Subject
	}
	return u.ID
}

// Session tracks an active console session. The bearer token itself is never
// stored; only its SHA256 hash. Provider sessions additionally carry the OIDC
// ID token and refresh token needed for silent renewal.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID        string        `bun:"id,pk,type:uuid"`
	UserID    string        `bun:"user_id,notnull,type:uuid"` // FK to users(id)
	TokenHash string        `bun:"token_hash,notnull,unique"` // SHA256 hash of bearer token
	Source    SessionSource `bun:"source,notnull"`

	// Provider-mode fields. Empty for fallback sessions.
	IDToken      string `bun:"id_token,type:text"`
	RefreshToken string `bun:"refresh_token,type:text"`

	ExpiresAt  time.Time  `bun:"expires_at,notnull"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time  `bun:"last_used_at,notnull,default:current_timestamp"`
	RenewedAt  *time.Time `bun:"renewed_at"`
	UserAgent  *string    `bun:"user_agent"`
	IPAddress  *string    `bun:"ip_address"`
	Revoked    bool       `bun:"revoked,notnull,default:false"`
}

// Live reports whether the session is usable at the given instant.
// A session past its expiry is treated identically to no session at all.
func (s *Session) Live(now time.Time) bool {
	if s == nil || s.Revoked {
		return false
	}
	return now.Before(s.ExpiresAt)
}
