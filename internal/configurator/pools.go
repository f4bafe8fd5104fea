package configurator

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// PoolSource supplies the products a configurator may offer.
type PoolSource interface {
	Pool(ctx context.Context, pool promo.Pool) ([]catalog.Product, error)
	BundleProduct(ctx context.Context, code promo.Code) (*catalog.Product, error)
	TestersPack(ctx context.Context) (*catalog.Product, error)
}

// CatalogPools loads pools from the catalog service.
type CatalogPools struct {
	Catalog     catalog.Service
	EcoCategory string
	ProCategory string
	// CategoryLimit bounds the eco and pro listings.
	CategoryLimit int
	// TesterLimit bounds the tester-choice listing.
	TesterLimit     int
	BundleSlugs     map[promo.Code]string
	TestersPackSlug string
}

// Pool implements PoolSource. Products without a numeric id are dropped.
func (c CatalogPools) Pool(ctx context.Context, pool promo.Pool) ([]catalog.Product, error) {
	if c.Catalog == nil {
		return nil, fmt.Errorf("configurator: catalog not configured")
	}
	var (
		products []catalog.Product
		err      error
	)
	switch pool {
	case promo.PoolEco:
		products, err = c.Catalog.ListByCategory(ctx, orDefault(c.EcoCategory, string(promo.PoolEco)), c.categoryLimit())
	case promo.PoolPro:
		products, err = c.Catalog.ListByCategory(ctx, orDefault(c.ProCategory, string(promo.PoolPro)), c.categoryLimit())
	case promo.PoolTester:
		limit := c.TesterLimit
		if limit <= 0 {
			limit = 300
		}
		products, err = c.Catalog.ListTesterChoices(ctx, limit)
	default:
		return nil, fmt.Errorf("configurator: unknown pool %q", pool)
	}
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.DatabaseID > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// BundleProduct implements PoolSource. A missing slug or product yields nil.
func (c CatalogPools) BundleProduct(ctx context.Context, code promo.Code) (*catalog.Product, error) {
	slug := strings.TrimSpace(c.BundleSlugs[code])
	if slug == "" || c.Catalog == nil {
		return nil, nil
	}
	return c.usable(c.Catalog.LookupBySlug(ctx, slug))
}

// TestersPack implements PoolSource.
func (c CatalogPools) TestersPack(ctx context.Context) (*catalog.Product, error) {
	slug := strings.TrimSpace(c.TestersPackSlug)
	if slug == "" || c.Catalog == nil {
		return nil, nil
	}
	return c.usable(c.Catalog.LookupBySlug(ctx, slug))
}

func (c CatalogPools) usable(p *catalog.Product, err error) (*catalog.Product, error) {
	if err != nil || p == nil || p.DatabaseID <= 0 {
		return nil, err
	}
	return p, nil
}

func (c CatalogPools) categoryLimit() int {
	if c.CategoryLimit <= 0 {
		return 100
	}
	return c.CategoryLimit
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
