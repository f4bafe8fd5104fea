package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/giftset-storefront/internal/obs"
)

const (
	cachePrefix     = "catalog:"
	defaultCacheTTL = 5 * time.Minute
)

// Cache is a read-through JSON store for catalog payloads. A nil *Cache, or
// one built without a client, never hits and silently drops writes.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewCache(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) enabled(key string) bool {
	return c != nil && c.rdb != nil && key != ""
}

// GetJSON decodes the entry for key into dst. A payload that no longer
// decodes (shape changed between deploys) is reported as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled(key) {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, cachePrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		obs.IncCounter(obs.CatalogCacheTotal, "miss")
		return false, nil
	case err != nil:
		obs.IncCounter(obs.CatalogCacheTotal, "error")
		return false, err
	}
	if json.Unmarshal(raw, dst) != nil {
		obs.IncCounter(obs.CatalogCacheTotal, "corrupt")
		return false, nil
	}
	obs.IncCounter(obs.CatalogCacheTotal, "hit")
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled(key) {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cachePrefix+key, raw, c.ttl).Err()
}
