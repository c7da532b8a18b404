package storage

import (
	"context"
	"time"
)

// SessionStore — хранилище сессий и Web Push подписок.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type SessionStore interface {
	SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error

	AddPushSubscription(ctx context.Context, userID, endpoint string, sub []byte) error
	ListPushSubscriptions(ctx context.Context, userID string) ([][]byte, error)
	RemovePushSubscription(ctx context.Context, userID, endpoint string) error

	Close() error
}
