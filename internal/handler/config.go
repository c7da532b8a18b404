package handler

import (
	"net/http"
)

// ClientConfig is the subset of server configuration the frontend needs to
// drive polling and push subscription.
type ClientConfig struct {
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	PushPublicKey       string `json:"push_public_key,omitempty"`
}

type ConfigHandler struct {
	cfg ClientConfig
}

func NewConfigHandler(pollIntervalSeconds int, pushPublicKey string) *ConfigHandler {
	return &ConfigHandler{cfg: ClientConfig{
		PollIntervalSeconds: pollIntervalSeconds,
		PushPublicKey:       pushPublicKey,
	}}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "config", h.cfg)
}
