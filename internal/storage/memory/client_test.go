package memory

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	c := New()
	ctx := context.Background()

	if err := c.SetSession(ctx, "s1", "u1", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.GetSession(ctx, "s1")
	if err != nil || got != "u1" {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := c.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := c.GetSession(ctx, "s1"); got != "" {
		t.Fatalf("deleted session should be gone, got %q", got)
	}
}

func TestSessionExpires(t *testing.T) {
	c := New()
	ctx := context.Background()
	if err := c.SetSession(ctx, "s1", "u1", -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := c.GetSession(ctx, "s1"); got != "" {
		t.Fatalf("expired session should be gone, got %q", got)
	}
}

func TestPushSubscriptionCap(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		endpoint := fmt.Sprintf("https://push.example/%d", i)
		if err := c.AddPushSubscription(ctx, "u1", endpoint, []byte(`{}`)); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := c.AddPushSubscription(ctx, "u1", "https://push.example/overflow", []byte(`{}`)); err == nil {
		t.Fatal("11th subscription should be rejected")
	}
	// Повторная подписка на существующий endpoint проходит и при полном лимите
	if err := c.AddPushSubscription(ctx, "u1", "https://push.example/3", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("re-subscribe existing endpoint: %v", err)
	}
	subs, err := c.ListPushSubscriptions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 10 {
		t.Fatalf("subscriptions must be capped at 10 per user, got %d", len(subs))
	}
}

func TestPushSubscriptionRemove(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.AddPushSubscription(ctx, "u1", "ep-1", []byte(`{"endpoint":"ep-1"}`))
	c.AddPushSubscription(ctx, "u1", "ep-2", []byte(`{"endpoint":"ep-2"}`))
	if err := c.RemovePushSubscription(ctx, "u1", "ep-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	subs, _ := c.ListPushSubscriptions(ctx, "u1")
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription left, got %d", len(subs))
	}
}
