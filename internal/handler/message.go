package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/model"
	"github.com/markethub/internal/push"
	"github.com/markethub/internal/repository"
	"github.com/markethub/internal/ws"
)

type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	hub      *ws.Hub
	pusher   *push.Sender
}

func NewMessageHandler(msgRepo *repository.MessageRepository, userRepo *repository.UserRepository, hub *ws.Hub, pusher *push.Sender) *MessageHandler {
	return &MessageHandler{msgRepo: msgRepo, userRepo: userRepo, hub: hub, pusher: pusher}
}

// GetThread returns the full message sequence with a peer and resets unread:
// every incoming message in the thread is marked read.
func (h *MessageHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerId")
	userID := middleware.GetUserID(r.Context())
	msgType, ok := queryMessageType(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown message type")
		return
	}

	messages, err := h.msgRepo.Thread(r.Context(), userID, peerID, msgType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	if err := h.msgRepo.MarkThreadRead(r.Context(), userID, peerID, msgType); err != nil {
		// Тред уже получен — не роняем ответ из-за сброса непрочитанных
		logger.Errorf("mark thread read user=%s peer=%s: %v", userID, peerID, err)
	}

	writeData(w, http.StatusOK, "messages", messages)
}

type CreateMessageRequest struct {
	ReceiverID   string               `json:"receiver_id"`
	Content      string               `json:"content"`
	Type         model.MessageType    `json:"type"`
	Attachment   *model.Attachment    `json:"attachment,omitempty"`
	Attachments  model.AttachmentList `json:"attachments,omitempty"`
	ReplyTo      *model.ReplyRef      `json:"reply_to,omitempty"`
	ReplyToID    string               `json:"reply_to_id,omitempty"`
	RelatedJobID *string              `json:"related_job_id,omitempty"`
}

// CreateMessage persists a message and returns the canonical entry. Clients
// replace their optimistic temp entry with this response in place.
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	userID := middleware.GetUserID(r.Context())

	if req.ReceiverID == "" || req.ReceiverID == userID {
		writeError(w, http.StatusBadRequest, "invalid receiver")
		return
	}
	if req.Type == "" {
		req.Type = model.MessageTypeJob
	}
	if req.Type != model.MessageTypeJob && req.Type != model.MessageTypeService {
		writeError(w, http.StatusBadRequest, "unknown message type")
		return
	}

	// Поле attachment (один объект) и attachments (список) сводим к списку
	attachments := req.Attachments
	if req.Attachment != nil {
		attachments = append(model.AttachmentList{*req.Attachment}, attachments...)
	}
	for i := range attachments {
		attachments[i].Uploading = false
	}

	if req.Content == "" && len(attachments) == 0 {
		writeError(w, http.StatusBadRequest, "content or attachment required")
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), req.ReceiverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receiver not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to check receiver")
		return
	}

	// Снимок reply делает клиент; reply_to_id без снимка разрешаем дорезолвить,
	// пока исходное сообщение ещё существует.
	replyTo := req.ReplyTo
	if replyTo == nil && req.ReplyToID != "" {
		if orig, err := h.msgRepo.GetByID(r.Context(), req.ReplyToID); err == nil {
			ref := model.NewReplyRef(orig)
			replyTo = &ref
		} else if !errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to resolve reply")
			return
		}
	}
	if replyTo != nil {
		replyTo.Content = model.TruncatePreview(replyTo.Content)
	}

	m := &model.Message{
		ID:           uuid.New().String(),
		SenderID:     userID,
		ReceiverID:   req.ReceiverID,
		Content:      req.Content,
		Type:         req.Type,
		Attachments:  attachments,
		ReplyTo:      replyTo,
		RelatedJobID: req.RelatedJobID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	created, err := h.msgRepo.GetByID(r.Context(), m.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load created message")
		return
	}

	h.hub.NotifyRefresh(created.ReceiverID, userID, created.Type)
	h.hub.NotifyRefresh(userID, created.ReceiverID, created.Type)
	if !h.hub.IsOnline(created.ReceiverID) {
		senderName := ""
		if created.Sender != nil {
			senderName = created.Sender.Name
		}
		preview := created.Content
		if preview == "" {
			preview = "Attachment"
		}
		go h.pusher.NotifyNewMessage(created.ReceiverID, senderName, preview, userID)
	}

	writeData(w, http.StatusCreated, "message", created)
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// React appends an emoji to a message and returns the canonical reaction list.
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "emoji is required")
		return
	}

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load message")
		return
	}
	if m.SenderID != userID && m.ReceiverID != userID {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	reactions, err := h.msgRepo.AddReaction(r.Context(), messageID, req.Emoji)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add reaction")
		return
	}

	peerID := m.SenderID
	if peerID == userID {
		peerID = m.ReceiverID
	}
	h.hub.NotifyRefresh(peerID, userID, m.Type)

	writeData(w, http.StatusOK, "reactions", reactions)
}

// DeleteMessage removes a message permanently. Only the sender may delete, and
// the route scopes the delete to one conversation.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	peerID := chi.URLParam(r, "peerId")
	messageID := chi.URLParam(r, "messageId")
	userID := middleware.GetUserID(r.Context())

	m, err := h.msgRepo.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load message")
		return
	}
	if m.SenderID != userID {
		writeError(w, http.StatusForbidden, "only the sender can delete a message")
		return
	}

	if err := h.msgRepo.Delete(r.Context(), messageID, userID, peerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}

	h.hub.NotifyRefresh(peerID, userID, m.Type)
	writeOK(w)
}
