package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/promo"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":        "redis://localhost:6379/0",
		"GRAPHQL_ENDPOINT": "https://shop.example/graphql",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 720*time.Hour, cfg.CartTTL)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, 50, cfg.CatalogDefaultLimit)
	require.Equal(t, 300, cfg.CatalogMaxLimit)
	require.True(t, cfg.PreferBundleSKU)
	require.Equal(t, "5ml-testers-of-your-choice", cfg.TestersPackSlug)
	require.Equal(t, []string{"my-product"}, cfg.HiddenProductSlugs)
	require.Equal(t, "gift-set-3-eco", cfg.BundleSlugs[promo.Gift3Eco])
	require.Equal(t, "gift-set-3-pro", cfg.BundleSlugs[promo.Gift3Pro])
	require.Equal(t, 2*time.Minute, cfg.CheckoutLatchTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadOverridesAndCoupons(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["GIFTSET_PREFER_BUNDLE_SKU"] = "false"
	env["COUPON_GIFT_3_ECO"] = " GIFT3ECO "
	env["COUPON_PRO_HALF_TESTERS"] = "HALFTEST"
	env["CHECKOUT_RATE_LIMIT"] = "nope"
	env["UPSTREAM_TIMEOUT"] = "3s"
	env["APP_ENV"] = "Production"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.False(t, cfg.PreferBundleSKU)
	require.Equal(t, map[promo.Code]string{
		promo.Gift3Eco:       "GIFT3ECO",
		promo.ProHalfTesters: "HALFTEST",
	}, cfg.Coupons)
	require.Equal(t, 5, cfg.CheckoutRateLimit)
	require.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
	require.True(t, cfg.IsProduction())
}

func TestLoadRequiresEndpoints(t *testing.T) {
	env := baseEnv()
	env["GRAPHQL_ENDPOINT"] = ""
	_, err := LoadForTests(env)
	require.EqualError(t, err, "GRAPHQL_ENDPOINT is required")

	env = baseEnv()
	env["REDIS_URL"] = ""
	_, err = LoadForTests(env)
	require.EqualError(t, err, "REDIS_URL is required")
}

func TestLoadRejectsInvertedLimits(t *testing.T) {
	env := baseEnv()
	env["CATALOG_DEFAULT_LIMIT"] = "500"
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestCouponKey(t *testing.T) {
	require.Equal(t, "COUPON_PRO_HALF_ECO", CouponKey(promo.ProHalfEco))
}
