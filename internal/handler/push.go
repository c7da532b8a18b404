package handler

import (
	"encoding/json"
	"net/http"

	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/push"
)

// PushHandler manages Web Push subscriptions for the signed-in user.
type PushHandler struct {
	pusher          *push.Sender
	vapidPublicKey  string
}

func NewPushHandler(pusher *push.Sender, vapidPublicKey string) *PushHandler {
	return &PushHandler{pusher: pusher, vapidPublicKey: vapidPublicKey}
}

// PublicKey returns the VAPID public key used by the browser to subscribe.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	if !h.pusher.Enabled() {
		writeError(w, http.StatusNotFound, "push is not configured")
		return
	}
	writeData(w, http.StatusOK, "public_key", h.vapidPublicKey)
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub push.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.pusher.Subscribe(r.Context(), userID, sub); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeOK(w)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.pusher.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	writeOK(w)
}
