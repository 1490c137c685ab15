package repository

import (
	"context"
	"time"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

// UserRepository manages canonical user records.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by database ID.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetBySubject retrieves a user by OIDC subject.
	GetBySubject(ctx context.Context, subject string) (*models.User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update persists changes to an existing user.
	Update(ctx context.Context, user *models.User) error

	// UpdateLastLogin stamps last_login_at for a user.
	UpdateLastLogin(ctx context.Context, id string) error

	// List retrieves all users (admin operation).
	List(ctx context.Context) ([]models.User, error)
}

// SessionRepository manages console sessions. The store is shared by every
// client of the same deployment, so a login or logout performed in one browser
// tab is observed by all others on their next request.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *models.Session) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id string) (*models.Session, error)

	// GetByTokenHash retrieves a session by its token hash. This is the
	// primary lookup method for authentication. Returns (nil, nil) when no
	// such session exists.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)

	// GetByUserID retrieves all sessions for a user.
	GetByUserID(ctx context.Context, userID string) ([]models.Session, error)

	// ExpiringBefore retrieves live provider sessions whose access token
	// expires before the given deadline. Used by the silent renewal job.
	ExpiringBefore(ctx context.Context, deadline time.Time) ([]models.Session, error)

	// UpdateTokens replaces the session's renewable material after a
	// successful silent renewal.
	UpdateTokens(ctx context.Context, session *models.Session) error

	// UpdateLastUsed updates the last_used_at timestamp for a session.
	UpdateLastUsed(ctx context.Context, id string) error

	// Revoke marks a session as revoked.
	Revoke(ctx context.Context, id string) error

	// RevokeByUserID revokes all sessions for a user.
	RevokeByUserID(ctx context.Context, userID string) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteExpired deletes all expired sessions. Run periodically.
	DeleteExpired(ctx context.Context) error

	// List retrieves all sessions (admin operation).
	List(ctx context.Context) ([]models.Session, error)
}
