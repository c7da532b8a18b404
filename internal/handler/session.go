package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markethub/internal/model"
	"github.com/markethub/internal/repository"
	"github.com/markethub/internal/storage"
)

// SessionHandler выдаёт и гасит сессии. Пароли и внешний SSO живут в отдельном
// сервисе авторизации; здесь — обмен подтверждённого email на session_id.
// В -dev неизвестный email создаёт пользователя на лету.
type SessionHandler struct {
	userRepo   *repository.UserRepository
	store      storage.SessionStore
	sessionTTL time.Duration
	devMode    bool
}

func NewSessionHandler(userRepo *repository.UserRepository, store storage.SessionStore, sessionTTL time.Duration, devMode bool) *SessionHandler {
	return &SessionHandler{userRepo: userRepo, store: store, sessionTTL: sessionTTL, devMode: devMode}
}

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Success   bool              `json:"success"`
	SessionID string            `json:"session_id"`
	User      model.CurrentUser `json:"user"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	u, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) && h.devMode {
		u, err = h.createDevUser(r, req)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	sessionID := uuid.New().String()
	if err := h.store.SetSession(r.Context(), sessionID, u.ID, h.sessionTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		SessionID: sessionID,
		User:      model.CurrentUser{ID: u.ID, Name: u.Name, Image: u.AvatarURL},
	})
}

func (h *SessionHandler) createDevUser(r *http.Request, req loginRequest) (*model.User, error) {
	role := model.Role(req.Role)
	switch role {
	case model.RoleAdmin, model.RoleBuyer, model.RoleCompany, model.RoleVendor:
	default:
		role = model.RoleBuyer
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(req.Email, "@", 2)[0]
	}
	u := &model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-Id")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID != "" {
		_ = h.store.DeleteSession(r.Context(), sessionID)
	}
	writeOK(w)
}
