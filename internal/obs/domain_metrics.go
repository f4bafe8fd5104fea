package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout submissions by outcome.
	CheckoutTotal *prometheus.CounterVec
	// PromotionCouponTotal counts promotion notes attached to orders by status.
	PromotionCouponTotal *prometheus.CounterVec
	// GiftsetCommitTotal counts configured offers committed to carts.
	GiftsetCommitTotal *prometheus.CounterVec
	// OrderSubmitLatency records order submission latency in milliseconds.
	OrderSubmitLatency *prometheus.HistogramVec
	// UpstreamRequestTotal counts GraphQL operations by target, operation and outcome.
	UpstreamRequestTotal *prometheus.CounterVec
	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss).
	CatalogCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout submissions by outcome.",
		}, []string{"result"}))
		PromotionCouponTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_coupon_total",
			Help:      "Count of promotion coupon outcomes on submitted orders.",
		}, []string{"status"}))
		GiftsetCommitTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "giftset_commit_total",
			Help:      "Count of configured offers added to carts.",
		}, []string{"offer", "mode"}))
		OrderSubmitLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_submit_duration_ms",
			Help:      "Latency of order submission calls in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"}))
		UpstreamRequestTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_graphql_requests_total",
			Help:      "GraphQL operations sent to the commerce backend.",
		}, []string{"target", "operation", "outcome"}))
		CatalogCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}))
	})
}

// IncCounter increments vec with labels when the collector is registered.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// ObserveHistogram records value when the collector is registered.
func ObserveHistogram(vec *prometheus.HistogramVec, value float64, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Observe(value)
}
