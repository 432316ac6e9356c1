package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/metrics"
)

func TestRateLimiter(t *testing.T) {
	m := metrics.NewMetrics()
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 2}, m)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/ai/chat", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// burst allows two requests
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5678").Code)

	rec := send("10.0.0.1:9999")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var body errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, errors.RateLimitError, body.Type)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("10.0.0.1")))

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234").Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{}, nil)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterInstancesAreIndependent(t *testing.T) {
	cfg := config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	first := NewRateLimiter(cfg, nil).Handler(ok)
	second := NewRateLimiter(cfg, nil).Handler(ok)

	rec := httptest.NewRecorder()
	first.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	second.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
