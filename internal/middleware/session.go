package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/markethub/internal/storage"
)

// SessionAuth проверяет X-Session-Id (или query session_id для WebSocket) по хранилищу сессий
// и кладёт user_id в контекст. Выдача сессий — в handler.SessionHandler.
func SessionAuth(store storage.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get("X-Session-Id")
			if sessionID == "" {
				sessionID = r.URL.Query().Get("session_id")
			}
			if sessionID == "" {
				http.Error(w, `{"success":false,"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			userID, err := store.GetSession(ctx, sessionID)
			cancel()
			if err != nil || userID == "" {
				http.Error(w, `{"success":false,"message":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, userID)))
		})
	}
}
