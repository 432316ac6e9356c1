package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/mocks"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		want    zapcore.Level
		wantErr bool
	}{
		{name: "json info", cfg: config.LoggingConfig{Level: "info", Format: "json"}, want: zapcore.InfoLevel},
		{name: "text debug", cfg: config.LoggingConfig{Level: "debug", Format: "text"}, want: zapcore.DebugLevel},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := zap.NewAtomicLevel()
			logger, err := NewLogger(tt.cfg, level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level.Level())
			assert.True(t, logger.Core().Enabled(tt.want))

			level.SetLevel(zapcore.ErrorLevel)
			assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
		})
	}
}

// routeReply answers each endpoint's prompt with a reply of the right shape.
func routeReply(_ context.Context, p *gollm.Prompt) (string, error) {
	content := p.Messages[0].Content
	switch {
	case strings.Contains(content, "inception year"):
		return `{"Go": 2009}`, nil
	case strings.HasPrefix(content, "Generate a tweet"):
		return `{"content": "Go!", "hashtags": ["#go"]}`, nil
	case strings.Contains(content, "comma-separated"):
		return "One, Two, Three", nil
	default:
		return "plain reply", nil
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *mocks.MockLLM) {
	t.Helper()
	llm := mocks.NewMockLLM(routeReply)
	s, err := New(config.DefaultConfig(), llm, "system prompt", zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return s, llm
}

func TestServerEndpoints(t *testing.T) {
	m := metrics.NewMetrics()
	s, llm := newTestServer(t, WithMetrics(m))

	tests := []struct {
		method      string
		path        string
		body        string
		contentType string
		wantBody    string
		wantJSON    bool
	}{
		{http.MethodGet, "/api/ai", "", "", "plain reply", false},
		{http.MethodPost, "/api/ai/generate-tweet", "gophers", "text/plain", "plain reply", false},
		{http.MethodPost, "/api/ai/suggest-title", `{"topic": "Go", "count": 2}`, "application/json", "plain reply", false},
		{http.MethodPost, "/api/ai/suggest-title-structured", `{"topic": "Go", "count": 3}`, "application/json", `{"titles": ["One", "Two", "Three"]}`, true},
		{http.MethodGet, "/api/ai/langs", "", "", `{"Go": 2009}`, true},
		{http.MethodPost, "/api/ai/tweet", "gophers", "text/plain", `{"content": "Go!", "hashtags": ["#go"]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			if tt.wantJSON {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}

	assert.Len(t, llm.Prompts(), len(tests))
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(m.CompletionsTotal.WithLabelValues("mock", "success")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parley_completions_total")
}

func TestServerTracesCompletions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s, _ := newTestServer(t, WithTracer(tp.Tracer("test")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ai", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.complete", spans[0].Name())
}

func TestServerServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
