// Package checkout turns a session cart into an upstream order.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/lock"
	"github.com/noah-isme/giftset-storefront/internal/obs"
	"github.com/noah-isme/giftset-storefront/internal/order"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
	"github.com/noah-isme/giftset-storefront/internal/promo"
)

// ErrSubmissionInFlight is returned when the session already has a checkout running.
var ErrSubmissionInFlight = errors.New("checkout: submission already in flight")

// Latch grants one holder per key without waiting.
type Latch interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Confirmation is returned after a successful submission.
type Confirmation struct {
	OrderID     int64          `json:"orderId"`
	OrderNumber string         `json:"orderNumber"`
	Total       string         `json:"total"`
	Status      string         `json:"status"`
	Redirect    string         `json:"redirect,omitempty"`
	Pricing     pricing.Totals `json:"pricing"`
	Promotion   *PromotionNote `json:"promotion,omitempty"`
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Carts      *cart.Repository
	Orders     order.Service
	Calculator *pricing.Calculator
	// Coupons maps offers to upstream coupon codes. Offers without a coupon
	// are submitted with a note for manual adjustment.
	Coupons  map[promo.Code]string
	Latch    Latch
	LatchTTL time.Duration
	Logger   zerolog.Logger
}

// Service submits session carts as orders.
type Service struct {
	carts      *cart.Repository
	orders     order.Service
	calculator *pricing.Calculator
	coupons    map[promo.Code]string
	latch      Latch
	latchTTL   time.Duration
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewService constructs a checkout service.
func NewService(cfg ServiceConfig) *Service {
	calc := cfg.Calculator
	if calc == nil {
		calc = pricing.NewCalculator(nil)
	}
	ttl := cfg.LatchTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	coupons := make(map[promo.Code]string, len(cfg.Coupons))
	for code, coupon := range cfg.Coupons {
		if trimmed := strings.TrimSpace(coupon); trimmed != "" {
			coupons[code] = trimmed
		}
	}
	return &Service{
		carts:      cfg.Carts,
		orders:     cfg.Orders,
		calculator: calc,
		coupons:    coupons,
		latch:      cfg.Latch,
		latchTTL:   ttl,
		validate:   newValidator(),
		logger:     cfg.Logger,
	}
}

// Submit validates in, submits the session cart and clears it on success.
// Validation failures happen before any upstream call; upstream failures
// leave the cart untouched.
func (s *Service) Submit(ctx context.Context, session string, in Input) (Confirmation, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return Confirmation{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Submit")
	defer span.End()

	result := "validation_failed"
	defer func() {
		span.SetAttributes(attribute.String("checkout.result", result))
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues(result).Inc()
		}
	}()

	in, err := validate(s.validate, in)
	if err != nil {
		return Confirmation{}, err
	}

	if s.latch != nil {
		release, err := s.latch.TryLock(ctx, "checkout:inflight:"+session, s.latchTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				result = "in_flight"
				return Confirmation{}, ErrSubmissionInFlight
			}
			result = "error"
			return Confirmation{}, err
		}
		defer release()
	}

	current, err := s.carts.Load(ctx, session)
	if err != nil {
		result = "error"
		return Confirmation{}, err
	}
	items := current.Items()
	if len(items) == 0 {
		return Confirmation{}, common.NewValidationError("cart", common.ErrEmptyCart)
	}
	lines := make([]order.Line, 0, len(items))
	for _, it := range items {
		if it.DatabaseID <= 0 || it.Quantity < 1 {
			return Confirmation{}, common.NewValidationError("items", common.ErrInvalidLineItem)
		}
		lines = append(lines, order.Line{ProductID: it.DatabaseID, Quantity: it.Quantity})
	}

	totals := current.Totals(s.calculator)
	span.SetAttributes(
		attribute.Int("checkout.lines", len(lines)),
		attribute.String("checkout.total", totals.Total.String()),
	)
	req := order.Request{
		Lines:                  lines,
		Billing:                in.Billing.toOrder(),
		Shipping:               in.Shipping.toOrder(),
		ShipToDifferentAddress: in.ShipToDifferentAddress,
		PaymentMethod:          in.PaymentMethod,
	}

	var note *PromotionNote
	if promotion := current.Promotion(); promotion != nil {
		n := newPromotionNote(*promotion, totals)
		span.SetAttributes(attribute.String("checkout.offer", string(promotion.Code)))
		switch {
		case !totals.Applied:
			n.Status = StatusInapplicable
		case s.coupons[promotion.Code] == "":
			n.Status = StatusUnconfigured
		default:
			n.Coupon = s.coupons[promotion.Code]
			req.CouponCode = n.Coupon
		}
		note = &n
		req.Annotate = func(res order.CouponResult) order.Annotation {
			*note = note.withCoupon(res)
			return note.annotation(in.Note)
		}
	} else if strings.TrimSpace(in.Note) != "" {
		shopperNote := strings.TrimSpace(in.Note)
		req.Annotate = func(order.CouponResult) order.Annotation {
			return order.Annotation{CustomerNote: shopperNote}
		}
	}

	res, err := s.orders.Submit(ctx, req)
	if err != nil {
		result = "upstream_failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("session_id", session).Msg("checkout_submit_failed")
		return Confirmation{}, common.NewUpstreamError("order.submit", err)
	}
	result = "success"

	if note != nil && obs.PromotionCouponTotal != nil {
		obs.PromotionCouponTotal.WithLabelValues(string(note.Status)).Inc()
	}
	if err := s.carts.Clear(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", session).Str("order", res.Order.OrderNumber).Msg("checkout_cart_clear_failed")
	}

	evt := s.logger.Info().
		Str("session_id", session).
		Str("order", res.Order.OrderNumber).
		Str("total", totals.Total.String())
	if note != nil {
		evt = evt.Str("offer", string(note.Offer)).Str("promotion_status", string(note.Status))
	}
	evt.Msg("checkout_submitted")

	return Confirmation{
		OrderID:     res.Order.DatabaseID,
		OrderNumber: res.Order.OrderNumber,
		Total:       res.Order.Total,
		Status:      res.Order.Status,
		Redirect:    res.Redirect,
		Pricing:     totals,
		Promotion:   note,
	}, nil
}
