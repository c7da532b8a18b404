package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/model"
	"github.com/markethub/internal/repository"
)

type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Me returns the session identity for the signed-in user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeData(w, http.StatusOK, "user", model.CurrentUser{ID: u.ID, Name: u.Name, Image: u.AvatarURL})
}

// Get returns the public profile of another user (chat header, product pages).
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.userRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "user")
		return
	}
	writeData(w, http.StatusOK, "user", u.ToPublic())
}

// List returns public profiles, optionally filtered by ?role=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	users, err := h.userRepo.List(r.Context(), r.URL.Query().Get("role"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "users")
		return
	}
	public := make([]model.UserPublic, 0, len(users))
	for i := range users {
		public = append(public, users[i].ToPublic())
	}
	writeData(w, http.StatusOK, "users", public)
}

// UpdateProfile changes the signed-in user's display name and avatar.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.userRepo.UpdateProfile(r.Context(), userID, req.Name, req.AvatarURL); err != nil {
		writeRepoError(w, err, "user")
		return
	}
	writeOK(w)
}
