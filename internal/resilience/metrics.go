package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState is 0 closed, 1 open, 2 half-open per upstream target.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "upstream",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per upstream (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "upstream",
		Name:      "breaker_transition_total",
		Help:      "Circuit breaker state changes per upstream.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "upstream",
		Name:      "breaker_open_total",
		Help:      "Times the circuit breaker for an upstream tripped open.",
	}, []string{"target"})
)
