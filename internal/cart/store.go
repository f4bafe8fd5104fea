package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StorageName prefixes every persisted cart key.
const StorageName = "scentedfumes-cart"

// Store persists carts per session. Load returns an empty cart when none is
// stored.
type Store interface {
	Load(ctx context.Context, session string) (*Aggregate, error)
	Save(ctx context.Context, session string, cart *Aggregate) error
	Delete(ctx context.Context, session string) error
}

func storageKey(session string) string {
	return StorageName + ":" + session
}

func decodeState(data []byte) (*Aggregate, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return Restore(state), nil
}

// RedisStore keeps carts as JSON documents in Redis.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (s RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

// Load implements Store.
func (s RedisStore) Load(ctx context.Context, session string) (*Aggregate, error) {
	if s.R == nil {
		return nil, errors.New("cart store not configured")
	}
	data, err := s.R.Get(ctx, storageKey(session)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return New(), nil
		}
		return nil, err
	}
	return decodeState(data)
}

// Save implements Store. The TTL is refreshed on every write.
func (s RedisStore) Save(ctx context.Context, session string, cart *Aggregate) error {
	if s.R == nil {
		return errors.New("cart store not configured")
	}
	data, err := json.Marshal(cart.Snapshot())
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.R.Set(ctx, storageKey(session), data, s.ttl()).Err()
}

// Delete implements Store.
func (s RedisStore) Delete(ctx context.Context, session string) error {
	if s.R == nil {
		return errors.New("cart store not configured")
	}
	return s.R.Del(ctx, storageKey(session)).Err()
}

// MemoryStore keeps serialised carts in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, session string) (*Aggregate, error) {
	s.mu.RLock()
	data, ok := s.data[storageKey(session)]
	s.mu.RUnlock()
	if !ok {
		return New(), nil
	}
	return decodeState(data)
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, session string, cart *Aggregate) error {
	data, err := json.Marshal(cart.Snapshot())
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[storageKey(session)] = data
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, storageKey(session))
	return nil
}

// SessionLocker serialises work per key. lock.Locker and lock.Local satisfy it.
type SessionLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Repository serialises load-mutate-save cycles per session.
type Repository struct {
	Store   Store
	Locker  SessionLocker
	LockTTL time.Duration
}

// Load returns the stored cart for session.
func (r *Repository) Load(ctx context.Context, session string) (*Aggregate, error) {
	if err := r.check(session); err != nil {
		return nil, err
	}
	return r.Store.Load(ctx, session)
}

// Mutate loads the cart, applies fn and saves the result while holding the
// session lock. Nothing is saved when fn fails.
func (r *Repository) Mutate(ctx context.Context, session string, fn func(*Aggregate) error) (*Aggregate, error) {
	if err := r.check(session); err != nil {
		return nil, err
	}
	var result *Aggregate
	run := func(ctx context.Context) error {
		cart, err := r.Store.Load(ctx, session)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		if err := r.Store.Save(ctx, session, cart); err != nil {
			return err
		}
		result = cart
		return nil
	}
	var err error
	if r.Locker == nil {
		err = run(ctx)
	} else {
		ttl := r.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Second
		}
		err = r.Locker.WithLock(ctx, "lock:"+storageKey(session), ttl, run)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear empties the stored cart and its promotion.
func (r *Repository) Clear(ctx context.Context, session string) error {
	_, err := r.Mutate(ctx, session, func(c *Aggregate) error {
		c.Clear()
		return nil
	})
	return err
}

func (r *Repository) check(session string) error {
	if r == nil || r.Store == nil {
		return errors.New("cart repository not configured")
	}
	if strings.TrimSpace(session) == "" {
		return errors.New("cart: session id required")
	}
	return nil
}
