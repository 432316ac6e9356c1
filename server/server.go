// Package server assembles the parley HTTP server: chat client gateway,
// processor, validator, handlers and router.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/server/handlers"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"github.com/teilomillet/parley/server/routing"
	"github.com/teilomillet/parley/server/validation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. "json" uses zap's production
// encoder; "text" uses the console encoder. level is shared so the
// config watcher can change it at runtime.
func NewLogger(cfg config.LoggingConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = level
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// Option customises New.
type Option func(*options)

type options struct {
	metrics *metrics.Metrics
	tracer  trace.Tracer
	counter *validation.TokenCounter
}

// WithMetrics records HTTP and completion metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer traces model calls.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithTokenCounter enables the context token budget check.
func WithTokenCounter(c *validation.TokenCounter) Option {
	return func(o *options) { o.counter = c }
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	router          *routing.Router
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// New wires llm into the chat endpoints and returns a server for cfg.
// tweetSystem is the already loaded tweet system message.
func New(cfg *config.Config, llm gollm.LLM, tweetSystem string, logger *zap.Logger, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	gatewayOpts := []provider.GatewayOption{
		provider.WithBreaker(cfg.CircuitBreaker),
		provider.WithGatewayLogger(logger),
	}
	if o.metrics != nil {
		gatewayOpts = append(gatewayOpts, provider.WithMetrics(o.metrics))
	}
	if o.tracer != nil {
		gatewayOpts = append(gatewayOpts, provider.WithTracer(o.tracer))
	}
	completer := provider.WithLogging(provider.NewGateway(llm, gatewayOpts...), logger)

	processor, err := processing.NewProcessor(&cfg.Processing, completer)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}
	if o.metrics != nil {
		processor.SetMetrics(o.metrics)
	}

	v := validation.New(o.counter, cfg.LLM.MaxContextTokens)
	chat := handlers.NewChatHandler(processor, v, tweetSystem, logger)
	router := routing.NewRouter(cfg, chat.Handlers(), o.metrics, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		router:          router,
		logger:          logger,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		if err := s.router.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error draining request queue: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
