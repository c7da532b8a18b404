package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/storage"
	"github.com/markethub/internal/ws"
)

// WSHandler апгрейдит соединение и подключает клиента к hub.
// Авторизация — session_id в query (браузерный WebSocket не умеет заголовки).
type WSHandler struct {
	hub      *ws.Hub
	store    storage.SessionStore
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, store storage.SessionStore, allowedOrigins string) *WSHandler {
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return &WSHandler{
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range origins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "session required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	userID, err := h.store.GetSession(ctx, sessionID)
	cancel()
	if err != nil || userID == "" {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.Debugf("ws: upgrade failed for user %s: %v", userID, err)
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	if !h.hub.Register(client) {
		client.Close()
		return
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	client.Start(connCtx, connCancel)
	client.Wait()
}
