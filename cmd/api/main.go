package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/checkout"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/config"
	"github.com/noah-isme/giftset-storefront/internal/configurator"
	"github.com/noah-isme/giftset-storefront/internal/graphql"
	"github.com/noah-isme/giftset-storefront/internal/health"
	"github.com/noah-isme/giftset-storefront/internal/lock"
	"github.com/noah-isme/giftset-storefront/internal/obs"
	"github.com/noah-isme/giftset-storefront/internal/order"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
	"github.com/noah-isme/giftset-storefront/internal/ratelimit"
	"github.com/noah-isme/giftset-storefront/internal/resilience"
	"github.com/noah-isme/giftset-storefront/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "giftset")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "giftset-storefront",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	// Catalog reads are idempotent and retried; order mutations are sent once
	// so a timed-out checkout is never replayed upstream.
	httpClient := graphql.NewHTTPClient(cfg.UpstreamTimeout)
	catalogGQL := &graphql.Client{
		Endpoint: cfg.GraphQLEndpoint,
		Target:   "catalog",
		HTTP: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     newBreaker(cfg, "catalog", logger),
			BaseBackoff: cfg.UpstreamBaseBackoff,
			MaxAttempts: cfg.UpstreamMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.UpstreamTimeout,
		},
		Logger: logger.With().Str("upstream", "catalog").Logger(),
	}
	orderGQL := &graphql.Client{
		Endpoint: cfg.GraphQLEndpoint,
		Target:   "order",
		HTTP: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     newBreaker(cfg, "order", logger),
			MaxAttempts: 1,
			Timeout:     cfg.UpstreamTimeout,
		},
		Logger: logger.With().Str("upstream", "order").Logger(),
	}

	catalogClient, err := catalog.NewClient(catalog.ClientConfig{
		GraphQL:         catalogGQL,
		Cache:           catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit:    cfg.CatalogDefaultLimit,
		MaxLimit:        cfg.CatalogMaxLimit,
		HiddenSlugs:     cfg.HiddenProductSlugs,
		TestersPackSlug: cfg.TestersPackSlug,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog client")
	}

	locker := lock.Locker{R: redisClient}
	carts := &cart.Repository{
		Store:   cart.RedisStore{R: redisClient, TTL: cfg.CartTTL},
		Locker:  locker,
		LockTTL: cfg.CartLockTTL,
	}
	calculator := pricing.NewCalculator(promo.DefaultClassifier(cfg.TestersPackSlug))

	pools := &configurator.CatalogPools{
		Catalog:         catalogClient,
		EcoCategory:     cfg.EcoCategory,
		ProCategory:     cfg.ProCategory,
		CategoryLimit:   cfg.CatalogDefaultLimit,
		TesterLimit:     cfg.CatalogMaxLimit,
		BundleSlugs:     cfg.BundleSlugs,
		TestersPackSlug: cfg.TestersPackSlug,
	}
	registry := &configurator.Registry{
		New: func() *configurator.Configurator {
			return configurator.New(pools, configurator.Options{PreferBundleSKU: cfg.PreferBundleSKU}, logger)
		},
		IdleTTL: cfg.ConfiguratorIdle,
	}

	checkoutSvc := checkout.NewService(checkout.ServiceConfig{
		Carts:      carts,
		Orders:     &order.Client{GraphQL: orderGQL, Logger: logger},
		Calculator: calculator,
		Coupons:    cfg.Coupons,
		Latch:      locker,
		LatchTTL:   cfg.CheckoutLatchTTL,
		Logger:     logger,
	})
	if len(cfg.Coupons) == 0 {
		logger.Warn().Msg("no promotion coupons configured; discounted orders will need manual adjustment")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		pprofHandler = protectPprof(newPprofMux(), user, pass)
	}

	r := newRouter(routerDeps{
		Logger:          logger,
		AllowedOrigins:  allowedOrigins(cfg),
		TracingEnabled:  tracingEnabled,
		HTTPMetrics:     httpMetrics,
		MetricsGatherer: metricsGatherer(metricsEnabled),
		Pprof:           pprofHandler,
		Headers: security.Headers{
			Enable:          cfg.SecurityHeaders,
			EnableHSTS:      cfg.HSTSEnabled,
			NoStorePrefixes: []string{"/api/v1/cart", "/api/v1/offers/active", "/api/v1/checkout"},
		},
		BodyLimit: security.BodyLimit{Max: cfg.MaxBodyBytes},
		Health: health.Handler{
			Checker:         readinessChecker{redis: redisClient, upstream: catalogGQL},
			RedisTimeout:    cfg.ReadyRedisTimeout,
			UpstreamTimeout: cfg.ReadyUpstreamTimeout,
		},
		Cart: &cart.Handler{Repo: carts, Catalog: catalogClient, Calculator: calculator, Logger: logger},
		Offers: &configurator.Handler{
			Registry:   registry,
			Carts:      carts,
			Calculator: calculator,
			Logger:     logger,
		},
		Checkout: &checkout.Handler{Svc: checkoutSvc, Logger: logger},
		Idem:     common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		CheckoutLimit: ratelimit.Handler{
			Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
			Config: ratelimit.Config{
				Key:    ratelimit.SessionOrIP("checkout:"),
				Window: cfg.CheckoutRateWindow,
				Max:    cfg.CheckoutRateLimit,
			},
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("checkout rate limiter unavailable")
			},
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health.SetReady(true)
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
		health.SetReady(false)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func newBreaker(cfg *config.Config, target string, logger zerolog.Logger) *resilience.Breaker {
	return resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget(target).
		WithLogger(logger)
}

func metricsGatherer(enabled bool) prometheus.Gatherer {
	if !enabled {
		return nil
	}
	return prometheus.DefaultGatherer
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis    *redis.Client
	upstream *graphql.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingUpstream(ctx context.Context, timeout time.Duration) error {
	if c.upstream == nil {
		return errors.New("graphql not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var out struct {
		Typename string `json:"__typename"`
	}
	_, err := c.upstream.Do(ctx, "query Ping { __typename }", nil, "", &out)
	return err
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// newPprofMux is mounted under /debug/pprof; chi leaves URL.Path intact, so
// the patterns carry the full prefix.
func newPprofMux() http.Handler {
	const base = "/debug/pprof/"
	mux := http.NewServeMux()
	mux.HandleFunc(base, pprof.Index)
	mux.HandleFunc(base+"cmdline", pprof.Cmdline)
	mux.HandleFunc(base+"profile", pprof.Profile)
	mux.HandleFunc(base+"symbol", pprof.Symbol)
	mux.HandleFunc(base+"trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
