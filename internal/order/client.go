// Package order submits carts to the commerce backend as orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/giftset-storefront/internal/graphql"
	"github.com/noah-isme/giftset-storefront/internal/obs"
)

var (
	// ErrNotSuccessful is returned when the backend answers with a result other than "success".
	ErrNotSuccessful = errors.New("order: checkout not successful")
	// ErrMalformedResponse is returned when the checkout payload lacks an order.
	ErrMalformedResponse = errors.New("order: malformed checkout response")
)

// Address mirrors the backend CustomerAddressInput.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Line is a product and quantity to order.
type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// MetaData is a key/value pair stored on the order.
type MetaData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Annotation is attached to the order once the coupon outcome is known.
type Annotation struct {
	CustomerNote string
	MetaData     []MetaData
}

// Request describes an order submission. When CouponCode is set the coupon
// is applied to the upstream cart before checkout. Annotate, if provided,
// receives the coupon outcome and returns the note and metadata to send.
type Request struct {
	Lines                  []Line
	Billing                Address
	Shipping               Address
	ShipToDifferentAddress bool
	PaymentMethod          string
	CouponCode             string
	Annotate               func(CouponResult) Annotation
}

// Order is the created order as reported by the backend.
type Order struct {
	DatabaseID  int64  `json:"databaseId"`
	OrderNumber string `json:"orderNumber"`
	Total       string `json:"total"`
	Status      string `json:"status"`
}

// Result is a successful submission.
type Result struct {
	Order    Order
	Redirect string
	Coupon   CouponResult
}

// CouponStatus classifies an ApplyCoupon outcome.
type CouponStatus string

const (
	CouponSkipped  CouponStatus = "skipped"
	CouponApplied  CouponStatus = "applied"
	CouponNotFound CouponStatus = "not_found"
	CouponError    CouponStatus = "error"
)

// CouponResult reports the outcome of applying a coupon.
type CouponResult struct {
	Code    string
	Status  CouponStatus
	Message string
}

// Service submits orders.
type Service interface {
	Submit(ctx context.Context, req Request) (Result, error)
}

type mutationRunner interface {
	Do(ctx context.Context, query string, vars map[string]any, session string, out any) (string, error)
}

// Client implements Service over the commerce GraphQL endpoint. The upstream
// session token is threaded through every mutation of one submission.
type Client struct {
	GraphQL mutationRunner
	Logger  zerolog.Logger
}

var _ Service = (*Client)(nil)

// Submit empties the upstream cart, adds every line, applies the coupon and
// runs checkout.
func (c *Client) Submit(ctx context.Context, req Request) (Result, error) {
	if c == nil || c.GraphQL == nil {
		return Result{}, errors.New("order client not configured")
	}
	start := time.Now()
	res, err := c.submit(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	obs.ObserveHistogram(obs.OrderSubmitLatency, obs.DurationMillis(time.Since(start)), outcome)
	return res, err
}

func (c *Client) submit(ctx context.Context, req Request) (Result, error) {
	if len(req.Lines) == 0 {
		return Result{}, errors.New("order: no lines")
	}
	session, err := c.GraphQL.Do(ctx, emptyCartMutation, nil, "", nil)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.Logger.Warn().Err(err).Msg("order_empty_cart_failed")
	}

	for _, line := range req.Lines {
		session, err = c.GraphQL.Do(ctx, addToCartMutation, map[string]any{
			"productId": line.ProductID,
			"quantity":  line.Quantity,
		}, session, nil)
		if err != nil {
			return Result{}, fmt.Errorf("add product %d: %w", line.ProductID, err)
		}
	}

	coupon := CouponResult{Status: CouponSkipped}
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		session, coupon = c.ApplyCoupon(ctx, session, code)
	}

	var annotation Annotation
	if req.Annotate != nil {
		annotation = req.Annotate(coupon)
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = "cod"
	}
	vars := map[string]any{
		"paymentMethod":          paymentMethod,
		"billing":                req.Billing,
		"shipping":               req.Shipping,
		"shipToDifferentAddress": req.ShipToDifferentAddress,
	}
	if annotation.CustomerNote != "" {
		vars["customerNote"] = annotation.CustomerNote
	}
	if len(annotation.MetaData) > 0 {
		vars["metaData"] = annotation.MetaData
	}

	var data checkoutData
	if _, err := c.GraphQL.Do(ctx, checkoutMutation, vars, session, &data); err != nil {
		return Result{}, fmt.Errorf("checkout: %w", err)
	}
	if data.Checkout == nil {
		return Result{}, ErrMalformedResponse
	}
	if !strings.EqualFold(data.Checkout.Result, "success") {
		return Result{}, fmt.Errorf("%w: result %q", ErrNotSuccessful, data.Checkout.Result)
	}
	if data.Checkout.Order == nil {
		return Result{}, ErrMalformedResponse
	}
	return Result{Order: *data.Checkout.Order, Redirect: data.Checkout.Redirect, Coupon: coupon}, nil
}

// ApplyCoupon applies code to the upstream cart identified by session and
// classifies the outcome. It never fails the submission; the returned
// session token replaces the one passed in.
func (c *Client) ApplyCoupon(ctx context.Context, session, code string) (string, CouponResult) {
	next, err := c.GraphQL.Do(ctx, applyCouponMutation, map[string]any{"code": code}, session, nil)
	if next == "" {
		next = session
	}
	result := CouponResult{Code: code, Status: CouponApplied}
	if err == nil {
		return next, result
	}
	result.Message = err.Error()
	var gqlErrs graphql.Errors
	if errors.As(err, &gqlErrs) && isNotFound(gqlErrs) {
		result.Status = CouponNotFound
	} else {
		result.Status = CouponError
	}
	c.Logger.Warn().Err(err).Str("coupon", code).Str("status", string(result.Status)).Msg("coupon_fallback")
	return next, result
}

func isNotFound(errs graphql.Errors) bool {
	for _, needle := range []string{"does not exist", "not found", "invalid coupon"} {
		if errs.Contains(needle) {
			return true
		}
	}
	return false
}
