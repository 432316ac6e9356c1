// Package provider sends prompts to the language model.
//
// Completer is the single operation the rest of the service depends on.
// Gateway implements it over a gollm client; WithLogging decorates any
// Completer with request/response logging.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/server/circuitbreaker"
	"github.com/teilomillet/parley/server/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Completer sends a prompt and returns the model's reply text.
type Completer interface {
	Complete(ctx context.Context, prompt *Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt *Prompt) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt *Prompt) (string, error) {
	return f(ctx, prompt)
}

// Gateway is the gollm-backed Completer. Provider errors are returned
// verbatim and never retried.
type Gateway struct {
	llm     gollm.LLM
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	breakerCfg *config.CircuitBreakerConfig
	breaker    *circuitbreaker.CircuitBreaker
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics records completion counts and latency.
func WithMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithBreaker fails fast with ErrProviderUnavailable while the provider
// keeps failing. Disabled configs are ignored.
func WithBreaker(cfg config.CircuitBreakerConfig) GatewayOption {
	return func(g *Gateway) {
		if cfg.Enabled {
			g.breakerCfg = &cfg
		}
	}
}

// WithTracer starts an "llm.complete" span per call.
func WithTracer(t trace.Tracer) GatewayOption {
	return func(g *Gateway) { g.tracer = t }
}

// WithGatewayLogger sets the logger used for breaker state changes.
func WithGatewayLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps llm.
func NewGateway(llm gollm.LLM, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		llm:    llm,
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider().Tracer("parley"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breakerCfg != nil {
		g.breaker = circuitbreaker.New(g.name(), *g.breakerCfg, g.logger, g.metrics)
	}
	return g
}

func (g *Gateway) name() string {
	return g.llm.GetProvider()
}

// Complete sends prompt to the model. The context is passed through so a
// cancelled request cancels the provider call.
func (g *Gateway) Complete(ctx context.Context, prompt *Prompt) (string, error) {
	if prompt == nil || len(prompt.Messages) == 0 {
		return "", ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, span := g.tracer.Start(ctx, "llm.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", g.llm.GetProvider()),
			attribute.String("llm.model", g.llm.GetModel()),
			attribute.StringSlice("llm.roles", prompt.Roles()),
		),
	)
	defer span.End()

	start := time.Now()
	call := func() (string, error) {
		return g.llm.Generate(ctx, prompt.toGollm())
	}

	var (
		reply string
		err   error
	)
	if g.breaker != nil {
		reply, err = g.breaker.Execute(call)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
	} else {
		reply, err = call()
	}

	g.observe(start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

func (g *Gateway) observe(start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	g.metrics.CompletionsTotal.WithLabelValues(g.name(), outcome).Inc()
	g.metrics.CompletionDuration.WithLabelValues(g.name()).Observe(time.Since(start).Seconds())
}
