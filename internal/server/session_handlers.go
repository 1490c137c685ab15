package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

// SessionResponse is the admin view of a session. Token material is never
// included; the store only holds hashes anyway.
type SessionResponse struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Source     string  `json:"source"`
	CreatedAt  int64   `json:"created_at"`
	ExpiresAt  int64   `json:"expires_at"`
	LastUsedAt int64   `json:"last_used_at"`
	RenewedAt  *int64  `json:"renewed_at,omitempty"`
	UserAgent  *string `json:"user_agent,omitempty"`
	IPAddress  *string `json:"ip_address,omitempty"`
	Revoked    bool    `json:"revoked"`
	Live       bool    `json:"live"`
}

func sessionResponse(s *models.Session, now time.Time) SessionResponse {
	resp := SessionResponse{
		ID:         s.ID,
		UserID:     s.UserID,
		Source:     string(s.Source),
		CreatedAt:  s.CreatedAt.UnixMilli(),
		ExpiresAt:  s.ExpiresAt.UnixMilli(),
		LastUsedAt: s.LastUsedAt.UnixMilli(),
		UserAgent:  s.UserAgent,
		IPAddress:  s.IPAddress,
		Revoked:    s.Revoked,
		Live:       s.Live(now),
	}
	if s.RenewedAt != nil {
		ms := s.RenewedAt.UnixMilli()
		resp.RenewedAt = &ms
	}
	return resp
}

// HandleListSessions lists every session for admin review.
func HandleListSessions(sessions repository.SessionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := sessions.List(r.Context())
		if err != nil {
			log.Printf("list sessions: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list sessions")
			return
		}
		now := time.Now()
		out := make([]SessionResponse, 0, len(all))
		for i := range all {
			out = append(out, sessionResponse(&all[i], now))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}

// HandleRevokeUserSessions revokes every session belonging to a user, the
// logout-everywhere action for offboarding or incident response. Responds with
// how many live sessions were cut off.
func HandleRevokeUserSessions(sessions repository.SessionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "missing user id")
			return
		}

		all, err := sessions.GetByUserID(r.Context(), userID)
		if err != nil {
			log.Printf("list sessions for user %s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "failed to list user sessions")
			return
		}
		now := time.Now()
		live := 0
		for i := range all {
			if all[i].Live(now) {
				live++
			}
		}

		if err := sessions.RevokeByUserID(r.Context(), userID); err != nil {
			log.Printf("revoke sessions for user %s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "failed to revoke user sessions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"revoked": live})
	}
}

// HandleRevokeSession revokes a session by ID. Revocation is observed by
// every tab holding the session's cookie on its next request.
func HandleRevokeSession(sessions repository.SessionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing session id")
			return
		}
		session, err := sessions.GetByID(r.Context(), id)
		if err != nil || session == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err := sessions.Revoke(r.Context(), id); err != nil {
			log.Printf("revoke session %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to revoke session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
