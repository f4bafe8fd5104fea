// Package ratelimit throttles checkout attempts per cart session with a Redis
// sliding window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/giftset-storefront/internal/common"
)

// Config names the bucket a request counts against and its allowance.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler is the HTTP face of a Limiter. OnError observes limiter failures;
// the request is let through in that case.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// SessionOrIP buckets by cart session, or by client address before a session
// has been minted.
func SessionOrIP(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		if session, ok := common.SessionID(r.Context()); ok {
			return prefix + "session:" + session
		}
		return prefix + "ip:" + common.ClientIP(r)
	}
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Config.Key == nil {
		return next
	}
	limit := strconv.Itoa(max(h.Config.Max, 0))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		out := w.Header()
		out.Set("X-RateLimit-Limit", limit)
		out.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		out.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := int(math.Ceil(time.Until(reset).Seconds()))
		if wait < 0 {
			wait = 0
		}
		out.Set("Retry-After", strconv.Itoa(wait))
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many checkout attempts", map[string]int{"retryAfter": wait})
	})
}
