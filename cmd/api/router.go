package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/checkout"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/configurator"
	"github.com/noah-isme/giftset-storefront/internal/health"
	"github.com/noah-isme/giftset-storefront/internal/obs"
	"github.com/noah-isme/giftset-storefront/internal/ratelimit"
	"github.com/noah-isme/giftset-storefront/internal/security"
)

type routerDeps struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	TracingEnabled  bool
	HTTPMetrics     *obs.HTTPMetrics
	MetricsGatherer prometheus.Gatherer
	Pprof           http.Handler
	Headers         security.Headers
	BodyLimit       security.BodyLimit
	Health          health.Handler

	Cart          *cart.Handler
	Offers        *configurator.Handler
	Checkout      *checkout.Handler
	Idem          common.Idem
	CheckoutLimit ratelimit.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(d.Headers.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", common.SessionHeader},
		ExposedHeaders:   []string{common.SessionHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.MetricsGatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.MetricsGatherer, promhttp.HandlerOpts{}))
	}
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(common.SessionMiddleware)
		v.Use(d.BodyLimit.Middleware)

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", d.Cart.Get)
			c.Delete("/", d.Cart.Clear)
			c.Post("/items", d.Cart.AddItem)
			c.Patch("/items/{key}", d.Cart.UpdateItem)
			c.Delete("/items/{key}", d.Cart.RemoveItem)
			c.Delete("/promotion", d.Cart.ClearPromotion)
			c.Post("/toggle", d.Cart.SetOpen)
		})

		v.Route("/offers", func(o chi.Router) {
			o.Get("/", d.Offers.ListOffers)
			o.Post("/{code}", d.Offers.SelectOffer)
			o.Route("/active", func(a chi.Router) {
				a.Get("/", d.Offers.Active)
				a.Get("/steps/{index}/options", d.Offers.StepOptions)
				a.Put("/steps/{index}", d.Offers.Choose)
				a.Post("/steps/{index}/focus", d.Offers.Focus)
				a.With(d.Idem.Middleware).Post("/commit", d.Offers.Commit)
			})
		})

		v.With(d.CheckoutLimit.Middleware, d.Idem.Middleware).Post("/checkout", d.Checkout.Checkout)
	})

	return r
}
