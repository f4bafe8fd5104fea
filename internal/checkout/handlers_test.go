package checkout_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/checkout"
	"github.com/noah-isme/giftset-storefront/internal/common"
)

func TestCheckoutHandlerStatuses(t *testing.T) {
	orders := &fakeOrders{}
	repo := &cart.Repository{Store: cart.NewMemoryStore()}
	h := &checkout.Handler{Svc: newService(repo, orders, nil)}
	handler := common.SessionMiddleware(http.HandlerFunc(h.Checkout))
	session := "7e0c1c4e-1111-4c55-8a43-9d1c2a1e5b70"

	body := `{"billing":{"firstName":"Asha","lastName":"Khan","address1":"12 Mall Road","city":"Lahore","email":"asha@example.com","phone":"03001234567"}}`
	post := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(payload))
		req.Header.Set(common.SessionHeader, session)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	seedCart(t, repo, session, false)
	rec = post(body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"orderNumber":"501"`)
}
