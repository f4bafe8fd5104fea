package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("commit: %w", NewValidationError("", ErrIncompleteSelection))
	require.True(t, errors.Is(err, ErrIncompleteSelection))
	require.True(t, IsValidation(err))
	require.False(t, IsUpstream(err))

	appErr := ToAppError(NewValidationError("billing.email", ErrInvalidField))
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"field": "billing.email"}, appErr.Details)
}

func TestUpstreamErrorMapsToBadGateway(t *testing.T) {
	err := NewUpstreamError("order.submit", errors.New("connection reset"))
	require.Equal(t, "order.submit: connection reset", err.Error())
	require.Equal(t, http.StatusBadGateway, ToAppError(err).HTTPStatus)
	require.Equal(t, http.StatusInternalServerError, ToAppError(errors.New("boom")).HTTPStatus)
}

func TestSessionMiddlewareMintsAndEchoes(t *testing.T) {
	var seen string
	handler := SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(SessionHeader))

	existing := "3f2c1a8e-9d4b-4e61-a0c7-5b2f8d9e1c34"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, existing)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, existing, seen)
}

func TestIdemRejectsReplayPerSession(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("Idempotency-Key", "abc")
		req = req.WithContext(WithSessionID(req.Context(), session))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("s1"))
	require.Equal(t, http.StatusConflict, send("s1"))
	require.Equal(t, http.StatusOK, send("s2"))
	require.Equal(t, 2, calls)
}

func TestIdemReleasesClaimAfterServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusBadGateway
	handler := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set(IdempotencyHeader, "retry-me")
		req = req.WithContext(WithSessionID(req.Context(), "s1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusBadGateway, send())
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
}

func TestDataAndErrorEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusOK, map[string]int{"items": 2})
	require.JSONEq(t, `{"data":{"items":2}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	JSONError(rec, http.StatusNotFound, "NOT_FOUND", "cart line not found", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"cart line not found"}}`, rec.Body.String())
}

func TestClientIPPrefersRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:41000"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	require.Equal(t, "198.51.100.7", ClientIP(req))

	req.RemoteAddr = ""
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	require.Equal(t, "203.0.113.1", ClientIP(req))
}
