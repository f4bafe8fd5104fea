// Package lock serialises cart mutations per session and guards checkout
// against double submission.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock: already held")

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
)

// compareAndDelete removes the key only while it still carries our token, so
// a holder whose TTL lapsed cannot release a successor's lock.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis SET NX lock. The zero RetryBackoff polls every 50ms.
type Locker struct {
	R            redis.Cmdable
	RetryBackoff time.Duration
}

// WithLock waits for key, runs fn and releases the lock afterwards whether or
// not fn failed. Waiting ends with ctx.Err() when ctx is done first.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultRetry
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		release, err := l.TryLock(ctx, key, ttl)
		switch {
		case err == nil:
			defer release()
			return fn(ctx)
		case !errors.Is(err, ErrLocked):
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock acquires key without waiting. The returned func is safe to call
// more than once.
func (l Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.R == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the request context may already be cancelled
		_ = compareAndDelete.Run(context.Background(), l.R, []string{key}, token).Err()
	}, nil
}
