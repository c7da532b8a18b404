package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/markethub/internal/storage/memory"
)

func TestSessionAuth(t *testing.T) {
	store := memory.New()
	if err := store.SetSession(context.Background(), "sess-1", "user-1", time.Hour); err != nil {
		t.Fatalf("set session: %v", err)
	}

	var gotUserID string
	h := SessionAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	}))

	// Заголовок X-Session-Id
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotUserID != "user-1" {
		t.Fatalf("header auth failed: status=%d user=%q", rec.Code, gotUserID)
	}

	// Query session_id (WebSocket)
	gotUserID = ""
	req = httptest.NewRequest(http.MethodGet, "/ws?session_id=sess-1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotUserID != "user-1" {
		t.Fatalf("query auth failed: status=%d user=%q", rec.Code, gotUserID)
	}
}

func TestSessionAuthRejects(t *testing.T) {
	store := memory.New()
	h := SessionAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// Без сессии
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Неизвестная сессия
	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("X-Session-Id", "nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionExpiry(t *testing.T) {
	store := memory.New()
	if err := store.SetSession(context.Background(), "sess-old", "user-1", -time.Second); err != nil {
		t.Fatalf("set session: %v", err)
	}
	h := SessionAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("X-Session-Id", "sess-old")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired session must be rejected, got %d", rec.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		if !rl.allow("k") {
			t.Fatalf("request %d should pass", i)
		}
	}
	if rl.allow("k") {
		t.Fatal("4th request should be rejected")
	}
	if !rl.allow("other") {
		t.Fatal("different key must not be throttled")
	}
	time.Sleep(60 * time.Millisecond)
	if !rl.allow("k") {
		t.Fatal("window expiry should admit again")
	}
}
