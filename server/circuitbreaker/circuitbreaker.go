// Package circuitbreaker wraps sony/gobreaker with logging and metrics.
package circuitbreaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/server/metrics"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned instead of calling through while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker fails fast once the wrapped dependency keeps failing.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates a breaker named name. m may be nil.
func New(name string, cfg config.CircuitBreakerConfig, logger *zap.Logger, m *metrics.Metrics) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:    name,
		logger:  logger,
		metrics: m,
	}

	threshold := cfg.FailureThreshold
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller giving up is not a dependency failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: cb.onStateChange,
	})

	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}
	return cb
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	level := cb.logger.Info
	if to == gobreaker.StateOpen {
		level = cb.logger.Warn
	}
	level("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if cb.metrics != nil {
		cb.metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	}
}

// Execute runs f unless the breaker is open. The error of f is returned
// unchanged; a rejected call returns ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(f func() (string, error)) (string, error) {
	out, err := cb.breaker.Execute(func() (interface{}, error) {
		return f()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
