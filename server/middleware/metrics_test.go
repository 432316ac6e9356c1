package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/teilomillet/parley/server/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	m := metrics.NewMetrics()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics(m))
	r.Get("/api/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/api/ai/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	tests := []struct {
		method   string
		path     string
		endpoint string
		status   string
	}{
		{http.MethodGet, "/api/ai/chat?message=hi", "/api/ai/chat", "200"},
		{http.MethodPost, "/api/ai/fail", "/api/ai/fail", "502"},
		{http.MethodGet, "/nowhere", "unmatched", "404"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.endpoint, tt.status)))
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("client_error")))
}
