package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// stubSessionRepo covers only the methods the handlers under test call; the
// embedded interface panics on anything else, which is the point.
type stubSessionRepo struct {
	repository.SessionRepository
	sessions    []models.Session
	revokedUser string
}

func (s *stubSessionRepo) GetByUserID(ctx context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *stubSessionRepo) RevokeByUserID(ctx context.Context, userID string) error {
	s.revokedUser = userID
	return nil
}

func TestRevokeUserSessionsCountsLiveOnly(t *testing.T) {
	now := time.Now()
	repo := &stubSessionRepo{sessions: []models.Session{
		{ID: "s1", UserID: "user-1", ExpiresAt: now.Add(time.Hour)},
		{ID: "s2", UserID: "user-1", ExpiresAt: now.Add(-time.Hour)},
		{ID: "s3", UserID: "user-1", ExpiresAt: now.Add(time.Hour), Revoked: true},
		{ID: "s4", UserID: "user-2", ExpiresAt: now.Add(time.Hour)},
	}}

	r := chi.NewRouter()
	r.Delete("/internal/users/{id}/sessions", HandleRevokeUserSessions(repo))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/internal/users/user-1/sessions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if repo.revokedUser != "user-1" {
		t.Errorf("revoked user = %q, want user-1", repo.revokedUser)
	}

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// s2 is expired and s3 already revoked; only s1 counts as cut off.
	if resp["revoked"] != 1 {
		t.Errorf("revoked = %d, want 1", resp["revoked"])
	}
}

func TestRevokeUserSessionsUnknownUser(t *testing.T) {
	repo := &stubSessionRepo{}

	r := chi.NewRouter()
	r.Delete("/internal/users/{id}/sessions", HandleRevokeUserSessions(repo))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/internal/users/ghost/sessions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["revoked"] != 0 {
		t.Errorf("revoked = %d, want 0 for a user with no sessions", resp["revoked"])
	}
}
