package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader names the client-chosen replay key.
const IdempotencyHeader = "Idempotency-Key"

// Idem claims each Idempotency-Key once per cart session. A replay while the
// claim is live gets 409. Claims whose request ended in a 5xx are dropped so
// the shopper can retry after an upstream failure.
type Idem struct {
	R   redis.Cmdable
	TTL time.Duration
}

func idemKey(session, key string) string {
	sum := sha256.Sum256([]byte(session + "\x00" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces the claim. Requests without the header pass through.
func (i Idem) Middleware(next http.Handler) http.Handler {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(IdempotencyHeader)
		if raw == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		session, _ := SessionID(r.Context())
		key := idemKey(session, raw)

		claimed, err := i.R.SetNX(r.Context(), key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			status := ww.Status()
			if rec := recover(); rec != nil {
				_ = i.R.Del(context.Background(), key).Err()
				panic(rec)
			}
			if status >= http.StatusInternalServerError {
				_ = i.R.Del(context.Background(), key).Err()
			}
		}()
		next.ServeHTTP(ww, r)
	})
}
