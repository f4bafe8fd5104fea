package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/graphql"
	"github.com/noah-isme/giftset-storefront/internal/order"
	"github.com/noah-isme/giftset-storefront/internal/resilience"
)

type recordedCall struct {
	Operation string
	Session   string
	Variables map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	calls    []recordedCall
	coupon   string
	checkout string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	op := ""
	for _, name := range []string{"EmptyCart", "AddToCart", "ApplyCoupon", "Checkout"} {
		if strings.Contains(body.Query, "mutation "+name) {
			op = name
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Operation: op, Session: r.Header.Get(graphql.SessionHeader), Variables: body.Variables})
	f.mu.Unlock()

	switch op {
	case "EmptyCart":
		w.Header().Set(graphql.SessionHeader, "tok-1")
		_, _ = w.Write([]byte(`{"data":{"emptyCart":{"cart":{"isEmpty":true}}}}`))
	case "AddToCart":
		_, _ = w.Write([]byte(`{"data":{"addToCart":{"cart":{"contents":{"itemCount":1}}}}}`))
	case "ApplyCoupon":
		if f.coupon != "" {
			_, _ = w.Write([]byte(f.coupon))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"applyCoupon":{"cart":{"appliedCoupons":[{"code":"x"}]}}}}`))
	case "Checkout":
		_, _ = w.Write([]byte(f.checkout))
	}
}

func newClient(t *testing.T, backend *fakeBackend) *order.Client {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return &order.Client{GraphQL: &graphql.Client{Endpoint: srv.URL, HTTP: resilience.HTTPClient{Client: srv.Client()}}}
}

func request() order.Request {
	return order.Request{
		Lines:      []order.Line{{ProductID: 11, Quantity: 1}, {ProductID: 12, Quantity: 2}},
		Billing:    order.Address{FirstName: "Asha", Email: "asha@example.com"},
		Shipping:   order.Address{FirstName: "Asha"},
		CouponCode: "GIFT3ECO",
	}
}

func TestSubmitThreadsSessionAndAnnotates(t *testing.T) {
	backend := &fakeBackend{checkout: `{"data":{"checkout":{"order":{"databaseId":501,"orderNumber":"501","total":"Rs 4,500","status":"PENDING"},"result":"success","redirect":""}}}`}
	client := newClient(t, backend)

	req := request()
	var seen order.CouponResult
	req.Annotate = func(c order.CouponResult) order.Annotation {
		seen = c
		return order.Annotation{CustomerNote: "note", MetaData: []order.MetaData{{Key: "_giftset_promotion", Value: "{}"}}}
	}
	res, err := client.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "501", res.Order.OrderNumber)
	require.Equal(t, order.CouponApplied, seen.Status)
	require.Equal(t, order.CouponApplied, res.Coupon.Status)

	ops := make([]string, 0, len(backend.calls))
	for _, c := range backend.calls {
		ops = append(ops, c.Operation)
	}
	require.Equal(t, []string{"EmptyCart", "AddToCart", "AddToCart", "ApplyCoupon", "Checkout"}, ops)
	require.Empty(t, backend.calls[0].Session)
	for _, c := range backend.calls[1:] {
		require.Equal(t, "Session tok-1", c.Session)
	}
	checkout := backend.calls[4].Variables
	require.Equal(t, "cod", checkout["paymentMethod"])
	require.Equal(t, "note", checkout["customerNote"])
	require.NotNil(t, checkout["metaData"])
}

func TestApplyCouponClassifiesNotFound(t *testing.T) {
	backend := &fakeBackend{
		coupon:   `{"errors":[{"message":"Coupon \"gift3eco\" does not exist!"}]}`,
		checkout: `{"data":{"checkout":{"order":{"orderNumber":"7"},"result":"success"}}}`,
	}
	client := newClient(t, backend)

	res, err := client.Submit(context.Background(), request())
	require.NoError(t, err)
	require.Equal(t, order.CouponNotFound, res.Coupon.Status)
	require.Contains(t, res.Coupon.Message, "does not exist")

	backend.coupon = `{"errors":[{"message":"Coupon usage limit has been reached."}]}`
	res, err = client.Submit(context.Background(), request())
	require.NoError(t, err)
	require.Equal(t, order.CouponError, res.Coupon.Status)
}

func TestSubmitFailures(t *testing.T) {
	backend := &fakeBackend{checkout: `{"data":{"checkout":{"order":{"orderNumber":"9"},"result":"failure"}}}`}
	client := newClient(t, backend)
	_, err := client.Submit(context.Background(), request())
	require.ErrorIs(t, err, order.ErrNotSuccessful)

	backend.checkout = `{"data":{"checkout":{"order":null,"result":"failure"}}}`
	_, err = client.Submit(context.Background(), request())
	require.ErrorIs(t, err, order.ErrNotSuccessful)
	require.NotErrorIs(t, err, order.ErrMalformedResponse)

	backend.checkout = `{"data":{"checkout":{"order":null,"result":"success"}}}`
	_, err = client.Submit(context.Background(), request())
	require.ErrorIs(t, err, order.ErrMalformedResponse)

	backend.checkout = `{"errors":[{"message":"Billing email is required"}]}`
	_, err = client.Submit(context.Background(), request())
	var gqlErrs graphql.Errors
	require.ErrorAs(t, err, &gqlErrs)
}
