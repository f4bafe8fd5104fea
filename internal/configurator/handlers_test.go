package configurator_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/cart"
	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/configurator"
	"github.com/noah-isme/giftset-storefront/internal/pricing"
)

func TestHandlersCommitFlow(t *testing.T) {
	pools := newPools()
	repo := &cart.Repository{Store: cart.NewMemoryStore()}
	h := &configurator.Handler{
		Registry: &configurator.Registry{New: func() *configurator.Configurator {
			return configurator.New(pools, configurator.Options{}, zerolog.Nop())
		}},
		Carts:      repo,
		Calculator: pricing.NewCalculator(nil),
	}
	r := chi.NewRouter()
	r.Use(common.SessionMiddleware)
	r.Get("/offers", h.ListOffers)
	r.Post("/offers/{code}", h.SelectOffer)
	r.Get("/offers/active/steps/{index}/options", h.StepOptions)
	r.Put("/offers/active/steps/{index}", h.Choose)
	r.Post("/offers/active/commit", h.Commit)

	session := "9d9c1c4e-1111-4c55-8a43-9d1c2a1e5b70"
	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(common.SessionHeader, session)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do(http.MethodGet, "/offers", "").Code)
	require.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPost, "/offers/unknown", "").Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/offers/gift_3_eco", "").Code)

	rec := do(http.MethodPost, "/offers/active/commit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	for i, id := range []string{"1", "2", "3"} {
		rec = do(http.MethodPut, "/offers/active/steps/"+string(rune('0'+i)), `{"productId":`+id+`}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/offers/active/steps/2/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var options struct {
		Data []struct {
			DatabaseID int64 `json:"databaseId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &options))
	require.Len(t, options.Data, 2)

	rec = do(http.MethodPost, "/offers/active/commit", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var committed struct {
		Data struct {
			Cart struct {
				Pricing struct {
					Total string `json:"total"`
				} `json:"pricing"`
			} `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &committed))
	require.Equal(t, "4500", committed.Data.Cart.Pricing.Total)
}

type flakyStore struct {
	*cart.MemoryStore
	saveErr error
}

func (s *flakyStore) Save(ctx context.Context, session string, c *cart.Aggregate) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, session, c)
}

func TestHandlersCommitKeepsSelectionWhenSaveFails(t *testing.T) {
	store := &flakyStore{MemoryStore: cart.NewMemoryStore(), saveErr: errors.New("redis: connection refused")}
	registry := &configurator.Registry{New: func() *configurator.Configurator {
		return configurator.New(newPools(), configurator.Options{}, zerolog.Nop())
	}}
	h := &configurator.Handler{
		Registry: registry,
		Carts:    &cart.Repository{Store: store},
		Logger:   zerolog.Nop(),
	}
	r := chi.NewRouter()
	r.Use(common.SessionMiddleware)
	r.Post("/offers/active/commit", h.Commit)

	session := "4b1f7d2a-2222-4c55-8a43-9d1c2a1e5b70"
	cfg := registry.Get(session)
	require.NoError(t, cfg.SelectOffer("pro_half_eco"))
	chooseAll(t, cfg, 10, 4)

	commit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/offers/active/commit", nil)
		req.Header.Set(common.SessionHeader, session)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := commit()
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "pro_half_eco", string(cfg.Active()))
	require.True(t, cfg.Complete())

	stored, err := store.Load(context.Background(), session)
	require.NoError(t, err)
	require.Zero(t, stored.Len())

	store.saveErr = nil
	rec = commit()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Empty(t, cfg.Active())

	stored, err = store.Load(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Len())
}
