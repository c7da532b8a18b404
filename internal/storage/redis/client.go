package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Подписки живут 30 дней без обновления; на пользователя не более 10 устройств.
const (
	subscriptionTTL = 30 * 24 * time.Hour
	maxSubsPerUser  = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSession сохраняет соответствие session_id → user_id с TTL.
func (c *Client) SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return c.cli.Set(ctx, "session:"+sessionID, userID, ttl).Err()
}

// GetSession возвращает user_id по session_id; пустая строка — сессии нет.
func (c *Client) GetSession(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session:"+sessionID).Err()
}

func subsKey(userID string) string { return "push:subs:" + userID }

// AddPushSubscription сохраняет подписку (hash endpoint → json), обновляя TTL ключа.
func (c *Client) AddPushSubscription(ctx context.Context, userID, endpoint string, sub []byte) error {
	key := subsKey(userID)
	n, err := c.cli.HLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if n >= maxSubsPerUser {
		exists, err := c.cli.HExists(ctx, key, endpoint).Result()
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("too many push subscriptions for user %s", userID)
		}
	}
	if err := c.cli.HSet(ctx, key, endpoint, sub).Err(); err != nil {
		return err
	}
	return c.cli.Expire(ctx, key, subscriptionTTL).Err()
}

func (c *Client) ListPushSubscriptions(ctx context.Context, userID string) ([][]byte, error) {
	vals, err := c.cli.HVals(ctx, subsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	subs := make([][]byte, 0, len(vals))
	for _, v := range vals {
		subs = append(subs, []byte(v))
	}
	return subs, nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	return c.cli.HDel(ctx, subsKey(userID), endpoint).Err()
}
