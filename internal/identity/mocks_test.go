package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

// mockUserRepo is an in-memory UserRepository for tests. Setting failAll
// simulates the canonical store being unreachable.
type mockUserRepo struct {
	users   map[string]*models.User
	failAll bool
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.failAll {
		return fmt.Errorf("store unavailable")
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

func (m *mockUserRepo) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	if m.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	for _, u := range m.users {
		if u.Subject != nil && *u.Subject == subject {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

// mockSessionRepo is an in-memory SessionRepository for tests. Deleted and
// revoked IDs are recorded so tests can assert on cleanup behavior.
type mockSessionRepo struct {
	sessions map[string]*models.Session
	deleted  []string
	revoked  []string
	failAll  bool
}

func newMockSessionRepo(sessions ...*models.Session) *mockSessionRepo {
	repo := &mockSessionRepo{sessions: make(map[string]*models.Session)}
	for _, s := range sessions {
		repo.sessions[s.ID] = s
	}
	return repo
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.failAll {
		return fmt.Errorf("store unavailable")
	}
	if session.ID == "" {
		session.ID = fmt.Sprintf("session-%d", len(m.sessions)+1)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return session, nil
}

func (m *mockSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSessionRepo) GetByUserID(ctx context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) ExpiringBefore(ctx context.Context, deadline time.Time) ([]models.Session, error) {
	var out []models.Session
	now := time.Now()
	for _, s := range m.sessions {
		if s.Source == models.SessionSourceProvider && s.Live(now) && s.RefreshToken != "" && s.ExpiresAt.Before(deadline) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) UpdateTokens(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) UpdateLastUsed(ctx context.Context, id string) error {
	return nil
}

func (m *mockSessionRepo) Revoke(ctx context.Context, id string) error {
	if s, ok := m.sessions[id]; ok {
		s.Revoked = true
	}
	m.revoked = append(m.revoked, id)
	return nil
}

func (m *mockSessionRepo) RevokeByUserID(ctx context.Context, userID string) error {
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.Revoked = true
			m.revoked = append(m.revoked, s.ID)
		}
	}
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			m.deleted = append(m.deleted, id)
		}
	}
	return nil
}

func (m *mockSessionRepo) List(ctx context.Context) ([]models.Session, error) {
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}
