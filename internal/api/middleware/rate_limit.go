package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/pkg/errors"
	"taskhub/internal/platform/auth"
)

// Requests allowed per minute for each class of endpoint.
var DefaultLimits = map[string]int{
	"auth":      20,
	"api_read":  600,
	"api_write": 120,
}

type RateLimiter struct {
	store  sync.Map // map[string]*bucket
	limits map[string]int
	idle   time.Duration
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
}

func NewRateLimiter(limits map[string]int) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &RateLimiter{limits: limits, idle: 10 * time.Minute}
}

// Run drops idle buckets until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.Cleanup(now)
		}
	}
}

func (rl *RateLimiter) Cleanup(now time.Time) {
	rl.store.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastAccess) > rl.idle {
			rl.store.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}

// Allow takes one token from key's bucket, refilling at limit per minute.
func (rl *RateLimiter) Allow(key string, limit int, now time.Time) bool {
	val, _ := rl.store.LoadOrStore(key, &bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	refill := int(now.Sub(b.lastRefill).Seconds() * float64(limit) / 60.0)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > limit {
			b.tokens = limit
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Limit rate-limits by signed-in user when claims are present, otherwise by
// client address.
func (rl *RateLimiter) Limit(class string) func(http.HandlerFunc) http.HandlerFunc {
	limit, ok := rl.limits[class]
	if !ok {
		limit = 100
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
				key = fmt.Sprintf("%s:%s", claims.UserID, class)
			} else {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = fmt.Sprintf("%s:%s", host, class)
			}

			if !rl.Allow(key, limit, time.Now()) {
				w.Header().Set("Retry-After", strconv.Itoa(60/max(limit, 1)+1))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimited, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
