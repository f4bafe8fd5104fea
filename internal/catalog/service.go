package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/graphql"
)

// Service is the catalog lookup surface consumed by the configurator and the
// HTTP layer. Lookups return (nil, nil) when the product does not exist.
type Service interface {
	LookupBySlug(ctx context.Context, slug string) (*Product, error)
	LookupByNumericID(ctx context.Context, id int64) (*Product, error)
	ListByCategory(ctx context.Context, slug string, limit int) ([]Product, error)
	ListTesterChoices(ctx context.Context, limit int) ([]Product, error)
}

type queryRunner interface {
	Do(ctx context.Context, query string, vars map[string]any, session string, out any) (string, error)
}

// Client implements Service over the commerce GraphQL endpoint.
type Client struct {
	gql          queryRunner
	cache        *Cache
	flight       singleflight.Group
	defaultLimit int
	maxLimit     int
	hiddenSlugs  map[string]struct{}
	testersSlug  string
	logger       zerolog.Logger
}

// ClientConfig groups Client dependencies.
type ClientConfig struct {
	GraphQL      queryRunner
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
	// HiddenSlugs are placeholder products never offered to shoppers.
	HiddenSlugs []string
	// TestersPackSlug is excluded from the tester-choice listing.
	TestersPackSlug string
	Logger          zerolog.Logger
}

var (
	_ Service     = (*Client)(nil)
	_ queryRunner = (*graphql.Client)(nil)
)

// NewClient constructs a catalog client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.GraphQL == nil {
		return nil, errors.New("catalog: graphql client is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 300
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	hidden := make(map[string]struct{}, len(cfg.HiddenSlugs))
	for _, slug := range cfg.HiddenSlugs {
		if trimmed := strings.TrimSpace(slug); trimmed != "" {
			hidden[strings.ToLower(trimmed)] = struct{}{}
		}
	}
	return &Client{
		gql:          cfg.GraphQL,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		hiddenSlugs:  hidden,
		testersSlug:  strings.ToLower(strings.TrimSpace(cfg.TestersPackSlug)),
		logger:       cfg.Logger,
	}, nil
}

// LookupBySlug fetches a single product by slug.
func (c *Client) LookupBySlug(ctx context.Context, slug string) (*Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	return c.lookup(ctx, "slug:"+slug, productBySlugQuery, map[string]any{"slug": slug})
}

// LookupByNumericID fetches a single product by its numeric database id.
func (c *Client) LookupByNumericID(ctx context.Context, id int64) (*Product, error) {
	if id <= 0 {
		return nil, nil
	}
	key := strconv.FormatInt(id, 10)
	return c.lookup(ctx, "id:"+key, productByDatabaseIDQuery, map[string]any{"id": key})
}

// ListByCategory returns up to limit products in the category slug.
func (c *Client) ListByCategory(ctx context.Context, slug string, limit int) ([]Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	limit = c.clampLimit(limit)
	key := fmt.Sprintf("category:%s:%d", slug, limit)
	return c.list(ctx, key, productsByCategoryQuery, map[string]any{"first": limit, "category": slug}, false)
}

// ListTesterChoices returns the products offered as individual tester picks.
func (c *Client) ListTesterChoices(ctx context.Context, limit int) ([]Product, error) {
	limit = c.clampLimit(limit)
	key := fmt.Sprintf("testers:%d", limit)
	return c.list(ctx, key, testerChoicesQuery, map[string]any{"first": limit}, true)
}

func (c *Client) lookup(ctx context.Context, key, query string, vars map[string]any) (*Product, error) {
	var cached Product
	if c.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		var data singleProductData
		if _, err := c.gql.Do(ctx, query, vars, "", &data); err != nil {
			return nil, common.NewUpstreamError("catalog.lookup", err)
		}
		if data.Product == nil || c.hidden(data.Product.Slug) {
			return nil, nil
		}
		product := data.Product.toProduct()
		c.writeCache(ctx, key, product)
		return product, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	product := v.(Product)
	return &product, nil
}

// list coalesces concurrent misses for the same key into one upstream call.
// The returned slice may be shared between callers and must not be modified.
func (c *Client) list(ctx context.Context, key, query string, vars map[string]any, excludeTesters bool) ([]Product, error) {
	var cached []Product
	if c.readCache(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		var data productListData
		if _, err := c.gql.Do(ctx, query, vars, "", &data); err != nil {
			return nil, common.NewUpstreamError("catalog.list", err)
		}
		result := make([]Product, 0)
		if data.Products != nil {
			for _, node := range data.Products.Nodes {
				if node.DatabaseID <= 0 || c.hidden(node.Slug) {
					continue
				}
				if excludeTesters && c.testersSlug != "" && strings.EqualFold(node.Slug, c.testersSlug) {
					continue
				}
				result = append(result, node.toProduct())
			}
		}
		c.writeCache(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

func (c *Client) readCache(ctx context.Context, key string, dst any) bool {
	ok, err := c.cache.GetJSON(ctx, key, dst)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	}
	return ok
}

func (c *Client) writeCache(ctx context.Context, key string, v any) {
	if err := c.cache.SetJSON(ctx, key, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
	}
}

func (c *Client) hidden(slug string) bool {
	_, ok := c.hiddenSlugs[strings.ToLower(strings.TrimSpace(slug))]
	return ok
}

func (c *Client) clampLimit(limit int) int {
	if limit < 1 {
		limit = c.defaultLimit
	}
	if limit > c.maxLimit {
		limit = c.maxLimit
	}
	return limit
}
