package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	GraphQLEndpoint    string
	CORSAllowedOrigins []string

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int
	EcoCategory         string
	ProCategory         string
	HiddenProductSlugs  []string
	TestersPackSlug     string

	CartTTL            time.Duration
	CartLockTTL        time.Duration
	ConfiguratorIdle   time.Duration
	PreferBundleSKU    bool
	BundleSlugs        map[promo.Code]string
	Coupons            map[promo.Code]string
	IdempotencyTTL     time.Duration
	CheckoutLatchTTL   time.Duration
	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration
	MaxBodyBytes       int64

	UpstreamTimeout      time.Duration
	UpstreamMaxAttempts  int
	UpstreamBaseBackoff  time.Duration
	BreakerMinRequests   int
	BreakerFailureRatio  float64
	BreakerOpenFor       time.Duration
	SecurityHeaders      bool
	HSTSEnabled          bool
	ShutdownGracePeriod  time.Duration
	ReadyRedisTimeout    time.Duration
	ReadyUpstreamTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		GraphQLEndpoint:    strings.TrimSpace(k.String("GRAPHQL_ENDPOINT")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 50),
		CatalogMaxLimit:     parseInt(k.String("CATALOG_MAX_LIMIT"), 300),
		EcoCategory:         valueOrDefault(k.String("GIFTSET_ECO_CATEGORY"), "eco"),
		ProCategory:         valueOrDefault(k.String("GIFTSET_PRO_CATEGORY"), "pro"),
		HiddenProductSlugs:  splitAndTrim(valueOrDefault(k.String("HIDDEN_PRODUCT_SLUGS"), "my-product")),
		TestersPackSlug:     valueOrDefault(k.String("TESTERS_PACK_SLUG"), "5ml-testers-of-your-choice"),

		CartTTL:            parseDuration(k.String("CART_TTL"), "720h"),
		CartLockTTL:        parseDuration(k.String("CART_LOCK_TTL"), "10s"),
		ConfiguratorIdle:   parseDuration(k.String("GIFTSET_CONFIGURATOR_IDLE"), "30m"),
		PreferBundleSKU:    parseBoolDefault(k.String("GIFTSET_PREFER_BUNDLE_SKU"), true),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		CheckoutLatchTTL:   parseDuration(k.String("CHECKOUT_LATCH_TTL"), "2m"),
		CheckoutRateLimit:  parseInt(k.String("CHECKOUT_RATE_LIMIT"), 5),
		CheckoutRateWindow: parseDuration(k.String("CHECKOUT_RATE_WINDOW"), "1m"),
		MaxBodyBytes:       int64(parseInt(k.String("MAX_BODY_BYTES"), 64<<10)),

		UpstreamTimeout:      parseDuration(k.String("UPSTREAM_TIMEOUT"), "10s"),
		UpstreamMaxAttempts:  parseInt(k.String("UPSTREAM_MAX_ATTEMPTS"), 3),
		UpstreamBaseBackoff:  parseDuration(k.String("UPSTREAM_BASE_BACKOFF"), "100ms"),
		BreakerMinRequests:   parseInt(k.String("BREAKER_MIN_REQUESTS"), 10),
		BreakerFailureRatio:  parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:       parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		SecurityHeaders:      parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		HSTSEnabled:          parseBool(k.String("SECURITY_HSTS")),
		ShutdownGracePeriod:  parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "15s"),
		ReadyRedisTimeout:    parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ReadyUpstreamTimeout: parseDuration(k.String("HEALTH_READY_UPSTREAM_TIMEOUT"), "1s"),
	}

	cfg.BundleSlugs = map[promo.Code]string{
		promo.Gift3Eco: valueOrDefault(k.String("GIFTSET_BUNDLE_SLUG_ECO"), "gift-set-3-eco"),
		promo.Gift3Pro: valueOrDefault(k.String("GIFTSET_BUNDLE_SLUG_PRO"), "gift-set-3-pro"),
	}
	cfg.Coupons = make(map[promo.Code]string)
	for _, code := range promo.Codes() {
		if coupon := strings.TrimSpace(k.String(CouponKey(code))); coupon != "" {
			cfg.Coupons[code] = coupon
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.GraphQLEndpoint == "" {
		return nil, errors.New("GRAPHQL_ENDPOINT is required")
	}
	if cfg.CatalogMaxLimit < cfg.CatalogDefaultLimit {
		return nil, fmt.Errorf("CATALOG_MAX_LIMIT (%d) must be >= CATALOG_DEFAULT_LIMIT (%d)", cfg.CatalogMaxLimit, cfg.CatalogDefaultLimit)
	}

	return cfg, nil
}

// CouponKey is the environment variable naming the storefront coupon for an
// offer, e.g. COUPON_GIFT_3_ECO.
func CouponKey(code promo.Code) string {
	return "COUPON_" + strings.ToUpper(string(code))
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
