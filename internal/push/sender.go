package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/storage"
)

// Subscription — подписка из браузера (формат PushSubscription.toJSON()).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Sender отправляет Web Push уведомления по сохранённым подпискам.
// Если VAPID-ключи не заданы — методы no-op (подписки сохраняются, отправка не выполняется).
type Sender struct {
	store      storage.SessionStore
	vapid      *webpush.Options
	sendCtxTTL time.Duration
}

// NewSender создаёт отправителя. Пустые ключи — пуши отключены.
func NewSender(store storage.SessionStore, publicKey, privateKey, contactEmail string) *Sender {
	s := &Sender{store: store, sendCtxTTL: 10 * time.Second}
	if publicKey != "" && privateKey != "" {
		sub := contactEmail
		if sub == "" {
			sub = "mailto:admin@localhost"
		}
		s.vapid = &webpush.Options{
			Subscriber:      sub,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             60,
		}
	}
	return s
}

// Enabled сообщает, настроена ли отправка пушей.
func (s *Sender) Enabled() bool { return s.vapid != nil }

// Subscribe сохраняет подписку пользователя.
func (s *Sender) Subscribe(ctx context.Context, userID string, sub Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return s.store.AddPushSubscription(ctx, userID, sub.Endpoint, data)
}

// Unsubscribe удаляет подписку по endpoint.
func (s *Sender) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return s.store.RemovePushSubscription(ctx, userID, endpoint)
}

// NotifyNewMessage отправляет пуш получателю нового сообщения.
// Вызывается асинхронно из handler; ошибки только логируются.
func (s *Sender) NotifyNewMessage(userID, senderName, preview, peerID string) {
	if s.vapid == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.sendCtxTTL)
	defer cancel()

	subs, err := s.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		logger.Errorf("push: list subscriptions user=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"title":   senderName,
		"body":    preview,
		"peer_id": peerID,
	})
	for _, raw := range subs {
		var sub Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push: send user=%s: %v", userID, err)
			continue
		}
		// 404/410 — подписка протухла, удаляем
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			if err := s.store.RemovePushSubscription(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push: remove stale subscription user=%s: %v", userID, err)
			}
		}
		resp.Body.Close()
	}
}
