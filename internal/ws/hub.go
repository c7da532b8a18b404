// Package ws delivers thread-refresh hints over WebSocket. Polling remains the
// contract for thread state; a hint only tells a connected client that its next
// poll is worth doing now.
package ws

import (
	"context"
	"sync"

	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/model"
)

// Event is the single message type pushed to clients.
type Event struct {
	Type    string            `json:"type"` // always "refresh"
	PeerID  string            `json:"peer_id"`
	MsgType model.MessageType `json:"msg_type"`
}

// Hub tracks connected clients per user id.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	count    int
	maxConns int
	sendBuf  int
}

func NewHub(maxConns, sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Hub{
		clients:  make(map[string]map[*Client]struct{}),
		maxConns: maxConns,
		sendBuf:  sendBuf,
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	for _, set := range h.clients {
		for c := range set {
			c.Close()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.count = 0
	h.mu.Unlock()
	logger.Info("ws hub stopped")
}

// Register adds a client; returns false when the connection limit is reached.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxConns > 0 && h.count >= h.maxConns {
		return false
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.count++
	return true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			h.count--
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// NotifyRefresh tells all of userID's connections that the thread with peerID
// changed. Non-blocking: a slow client just misses the hint and catches up on
// its regular poll.
func (h *Hub) NotifyRefresh(userID, peerID string, msgType model.MessageType) {
	ev := Event{Type: "refresh", PeerID: peerID, MsgType: msgType}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		c.TrySend(ev)
	}
}
