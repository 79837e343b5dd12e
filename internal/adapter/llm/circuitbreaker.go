package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
}

// CircuitBreakerClient fails fast once the wrapped provider keeps failing.
type CircuitBreakerClient struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker[string]
}

// NewCircuitBreakerClient wraps inner with a circuit breaker.
func NewCircuitBreakerClient(inner Completer, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreakerClient{inner: inner, breaker: cb}
}

// Generate implements Completer.
func (c *CircuitBreakerClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	text, err := c.breaker.Execute(func() (string, error) {
		return c.inner.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("completion provider circuit open: %w", err)
		}
		return "", err
	}
	return text, nil
}

// State returns the current circuit breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
