package handler

import (
	"net/http"

	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/repository"
)

type ConversationHandler struct {
	convRepo *repository.ConversationRepository
}

func NewConversationHandler(convRepo *repository.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo}
}

// List returns the user's derived conversation list for a type tag,
// most recent first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	msgType, ok := queryMessageType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown message type")
		return
	}

	conversations, err := h.convRepo.ListForUser(r.Context(), userID, msgType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get conversations")
		return
	}
	writeData(w, http.StatusOK, "conversations", conversations)
}

// UnreadTotal returns the count behind the header badge.
func (h *ConversationHandler) UnreadTotal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	count, err := h.convRepo.UnreadTotal(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get unread count")
		return
	}
	writeData(w, http.StatusOK, "unread", count)
}
