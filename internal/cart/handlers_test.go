package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/catalog"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
)

type stubCatalog struct {
	products map[string]catalog.Product
}

func (s stubCatalog) LookupBySlug(_ context.Context, slug string) (*catalog.Product, error) {
	if p, ok := s.products[slug]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s stubCatalog) LookupByNumericID(_ context.Context, id int64) (*catalog.Product, error) {
	for _, p := range s.products {
		if p.DatabaseID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (stubCatalog) ListByCategory(context.Context, string, int) ([]catalog.Product, error) {
	return nil, nil
}

func (stubCatalog) ListTesterChoices(context.Context, int) ([]catalog.Product, error) {
	return nil, nil
}

func newRouter() http.Handler {
	h := &cart.Handler{
		Repo: &cart.Repository{Store: cart.NewMemoryStore()},
		Catalog: stubCatalog{products: map[string]catalog.Product{
			"oud":   {DatabaseID: 1, Slug: "oud", Name: "Oud", Price: "Rs 2,000"},
			"amber": {DatabaseID: 2, Slug: "amber", Name: "Amber", Price: "700", StockStatus: catalog.OutOfStock},
		}},
		Calculator: pricing.NewCalculator(nil),
	}
	r := chi.NewRouter()
	r.Use(common.SessionMiddleware)
	r.Get("/cart", h.Get)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{key}", h.UpdateItem)
	r.Delete("/cart/items/{key}", h.RemoveItem)
	r.Post("/cart/toggle", h.SetOpen)
	return r
}

type cartResponse struct {
	Data struct {
		Items []struct {
			Key      string `json:"key"`
			Quantity int    `json:"quantity"`
		} `json:"items"`
		IsOpen  bool `json:"isOpen"`
		Pricing struct {
			Subtotal string `json:"subtotal"`
			Total    string `json:"total"`
		} `json:"pricing"`
		Display map[string]string `json:"display"`
	} `json:"data"`
}

func call(t *testing.T, h http.Handler, session, method, path, body string) (*httptest.ResponseRecorder, cartResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(common.SessionHeader, session)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out cartResponse
	if rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestCartHandlersFlow(t *testing.T) {
	router := newRouter()
	session := "4b8f7f1e-9f3a-4c55-8a43-9d1c2a1e5b70"

	rec, out := call(t, router, session, http.MethodPost, "/cart/items", `{"slug":"oud"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, session, rec.Header().Get(common.SessionHeader))
	require.True(t, out.Data.IsOpen)

	rec, out = call(t, router, session, http.MethodPost, "/cart/items", `{"productId":1,"testerSelections":["A","B"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, out.Data.Items, 2)
	require.Equal(t, "1::A|B", out.Data.Items[1].Key)

	rec, out = call(t, router, session, http.MethodPatch, "/cart/items/1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, out.Data.Items[0].Quantity)
	require.Equal(t, "8000", out.Data.Pricing.Total)
	require.Equal(t, "Rs 8,000", out.Data.Display["total"])

	rec, _ = call(t, router, session, http.MethodPatch, "/cart/items/404", `{"quantity":3}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = call(t, router, session, http.MethodDelete, "/cart/items/1%3A%3AA%7CB", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out.Data.Items, 1)

	rec, out = call(t, router, session, http.MethodPost, "/cart/toggle", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, out.Data.IsOpen)

	rec, out = call(t, router, session, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "6000", out.Data.Pricing.Subtotal)
}

func TestCartHandlersRejectUnknownAndOutOfStock(t *testing.T) {
	router := newRouter()
	session := "0f5c1f3e-2222-4c55-8a43-9d1c2a1e5b70"

	rec, _ := call(t, router, session, http.MethodPost, "/cart/items", `{"slug":"missing"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = call(t, router, session, http.MethodPost, "/cart/items", `{"slug":"amber"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = call(t, router, session, http.MethodPost, "/cart/items", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
