// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/giftset-storefront/internal/common"
)

var draining atomic.Bool

// SetReady flips the process readiness flag. main clears it on shutdown so the
// load balancer stops routing carts here before the listener closes.
func SetReady(ready bool) { draining.Store(!ready) }

// IsReady reports the process readiness flag.
func IsReady() bool { return !draining.Load() }

// Checker probes the two things a cart request cannot do without: the Redis
// cart store and the commerce GraphQL endpoint.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
	PingUpstream(ctx context.Context, timeout time.Duration) error
}

type Handler struct {
	Checker         Checker
	RedisTimeout    time.Duration
	UpstreamTimeout time.Duration
}

type readiness struct {
	Redis    string `json:"redis"`
	Upstream string `json:"upstream"`
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready runs both probes concurrently and answers 503 if either fails or the
// process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	switch {
	case !IsReady():
		common.JSONError(w, http.StatusServiceUnavailable, "DRAINING", "shutting down", nil)
		return
	case h.Checker == nil:
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "dependencies not configured", nil)
		return
	}

	ctx := r.Context()
	out := readiness{Redis: "ok", Upstream: "ok"}
	var g errgroup.Group
	g.Go(func() error {
		if err := h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond)); err != nil {
			out.Redis = err.Error()
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := h.Checker.PingUpstream(ctx, orDefault(h.UpstreamTimeout, time.Second)); err != nil {
			out.Upstream = err.Error()
			return err
		}
		return nil
	})

	status := http.StatusOK
	if g.Wait() != nil {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, out)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
