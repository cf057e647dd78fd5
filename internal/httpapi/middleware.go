package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyActingUser ctxKey = "acting_user"

// actingUserMiddleware carries the acting user's id across a request, the
// one piece of identity the core needs (every operation's CreatedBy).
// There is no role or permission check here — that's explicitly out of
// scope (§1) and left to whatever deployment wraps this adapter.
func (s *Server) actingUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := s.sessionStore.Get(r, "inventory-session")

		var userID uuid.UUID
		if raw, ok := session.Values["acting_user"].(string); ok {
			if parsed, err := uuid.Parse(raw); err == nil {
				userID = parsed
			}
		}
		if userID == uuid.Nil {
			if raw := r.Header.Get("X-Acting-User"); raw != "" {
				if parsed, err := uuid.Parse(raw); err == nil {
					userID = parsed
				}
			}
		}
		if userID == uuid.Nil {
			http.Error(w, "missing acting user (X-Acting-User header or session)", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyActingUser, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actingUser(r *http.Request) uuid.UUID {
	if v, ok := r.Context().Value(ctxKeyActingUser).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
