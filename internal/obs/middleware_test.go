package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giftset-storefront/internal/common"
	"github.com/noah-isme/giftset-storefront/internal/obs"
)

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("giftset", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Patch("/api/v1/cart/items/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/101", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPatch, "/api/v1/cart/items/{key}", "200"))
	require.Equal(t, float64(1), total)
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))

	again := obs.NewHTTPMetrics("giftset", nil, registry)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRequestLoggerIncludesSession(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.RequestLogger{Logger: zerolog.New(&buf)}
	handler := logger.Middleware(common.SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set(common.SessionHeader, "3c9a1c4e-1111-4c55-8a43-9d1c2a1e5b70")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "3c9a1c4e-1111-4c55-8a43-9d1c2a1e5b70", entry["session_id"])
	require.EqualValues(t, http.StatusAccepted, entry["status"])
	require.Equal(t, "unmatched", entry["route"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 50}, obs.ParseBucketsCSV(" 5, x, -1, 50 "))
	require.Empty(t, obs.ParseBucketsCSV(""))
}

func TestDomainMetricsHelpers(t *testing.T) {
	obs.IncCounter(nil, "ignored")
	obs.ObserveHistogram(nil, 1, "ignored")

	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("giftset", registry)
	obs.IncCounter(obs.GiftsetCommitTotal, "gift_3_eco", "bundle")
	require.Equal(t, float64(1), testutil.ToFloat64(obs.GiftsetCommitTotal.WithLabelValues("gift_3_eco", "bundle")))
}
