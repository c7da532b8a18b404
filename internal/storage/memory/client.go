// Package memory — реализация SessionStore в памяти для -dev (без Redis).
// Данные теряются при перезапуске; для production не предназначена.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type session struct {
	userID    string
	expiresAt time.Time
}

type Client struct {
	mu       sync.Mutex
	sessions map[string]session
	subs     map[string]map[string][]byte // userID → endpoint → json
}

func New() *Client {
	return &Client{
		sessions: make(map[string]session),
		subs:     make(map[string]map[string][]byte),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(_ context.Context, sessionID, userID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = session{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(_ context.Context, sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return "", nil
	}
	if time.Now().After(s.expiresAt) {
		delete(c.sessions, sessionID)
		return "", nil
	}
	return s.userID, nil
}

func (c *Client) DeleteSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

func (c *Client) AddPushSubscription(_ context.Context, userID, endpoint string, sub []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[userID]
	if !ok {
		m = make(map[string][]byte)
		c.subs[userID] = m
	}
	if len(m) >= 10 {
		if _, exists := m[endpoint]; !exists {
			return fmt.Errorf("too many push subscriptions for user %s", userID)
		}
	}
	m[endpoint] = sub
	return nil
}

func (c *Client) ListPushSubscriptions(_ context.Context, userID string) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.subs[userID]
	subs := make([][]byte, 0, len(m))
	for _, v := range m {
		subs = append(subs, v)
	}
	return subs, nil
}

func (c *Client) RemovePushSubscription(_ context.Context, userID, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.subs[userID]; ok {
		delete(m, endpoint)
	}
	return nil
}
