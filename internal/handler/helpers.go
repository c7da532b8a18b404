package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/model"
)

// All /api responses use the same envelope: {"success": bool, <data>, "message"?}.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

// writeData responds {"success":true, key: v}.
func writeData(w http.ResponseWriter, status int, key string, v any) {
	writeJSON(w, status, map[string]any{"success": true, key: v})
}

// writeOK responds {"success":true}.
func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// writeError responds {"success":false,"message":msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryMessageType reads the type tag; empty defaults to JOB.
func queryMessageType(r *http.Request) (model.MessageType, bool) {
	switch r.URL.Query().Get("type") {
	case "", string(model.MessageTypeJob):
		return model.MessageTypeJob, true
	case string(model.MessageTypeService):
		return model.MessageTypeService, true
	}
	return "", false
}
