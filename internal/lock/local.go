package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Local is an in-process lock keyed by string. It serves single-instance
// deployments and tests where Redis is not available. TTLs are ignored.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// WithLock runs fn while holding key, waiting for the current holder if any.
func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	for {
		release, err := l.TryLock(ctx, key, 0)
		if err == nil {
			defer release()
			return fn(ctx)
		}
		l.mu.Lock()
		wait := l.held[key]
		l.mu.Unlock()
		if wait == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// TryLock acquires key without waiting.
func (l *Local) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]chan struct{})
	}
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	done := make(chan struct{})
	l.held[key] = done
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
			close(done)
		})
	}, nil
}
