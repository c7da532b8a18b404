package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/markethub/internal/fileserver"
)

// FileHandler exposes upload and download over the attachment store.
type FileHandler struct {
	files *fileserver.Service
}

func NewFileHandler(files *fileserver.Service) *FileHandler {
	return &FileHandler{files: files}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.files.Upload(w, r)
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	h.files.Serve(w, r, chi.URLParam(r, "folder"), chi.URLParam(r, "filename"))
}
