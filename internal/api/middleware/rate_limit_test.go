package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/platform/auth"
)

func TestRateLimiter_AllowRefills(t *testing.T) {
	rl := NewRateLimiter(nil)
	start := time.Unix(1_000, 0)

	for i := 0; i < 2; i++ {
		if !rl.Allow("k", 2, start) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("k", 2, start) {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("k", 2, start.Add(30*time.Second)) {
		t.Error("expected one token back after half a minute")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(nil)
	start := time.Unix(1_000, 0)

	rl.Allow("idle", 5, start)
	rl.Cleanup(start.Add(time.Hour))

	if _, ok := rl.store.Load("idle"); ok {
		t.Error("expected idle bucket to be dropped")
	}
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	rl := NewRateLimiter(map[string]int{"api_write": 1})
	handler := rl.Limit("api_write")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
		ctx := context.WithValue(req.Context(), apiContext.Claims, &auth.Claims{UserID: userID})
		rec := httptest.NewRecorder()
		handler(rec, req.WithContext(ctx))
		return rec.Code
	}

	if code := send("usr_1"); code != http.StatusNoContent {
		t.Fatalf("expected first request through, got %d", code)
	}
	if code := send("usr_1"); code != http.StatusTooManyRequests {
		t.Errorf("expected usr_1 to be limited, got %d", code)
	}
	if code := send("usr_2"); code != http.StatusNoContent {
		t.Errorf("expected usr_2 to have its own bucket, got %d", code)
	}
}
