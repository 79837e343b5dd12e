package llm

import (
	"log/slog"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "ONDESK_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// Options configures the resilience wrappers around the provider.
type Options struct {
	Timeout         time.Duration
	RateLimitRPS    float64
	RateBurst       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// NewCompleter creates a Completer based on the ONDESK_MODE environment variable.
// If ONDESK_MODE=MOCK, returns a MockClient; otherwise returns a real Client
// wrapped with a circuit breaker and, when configured, a rate limiter.
func NewCompleter(baseURL, apiKey string, opts Options, logger *slog.Logger) Completer {
	if os.Getenv(EnvMode) == ModeMock {
		logger.Info("mock mode detected, using mock LLM client", "env", EnvMode)
		return NewMockClient()
	}

	var c Completer = NewClient(baseURL, apiKey, opts.Timeout)
	c = NewCircuitBreakerClient(c, CircuitBreakerConfig{
		MaxFailures: opts.BreakerFailures,
		Timeout:     opts.BreakerTimeout,
	}, logger)
	if opts.RateLimitRPS > 0 {
		c = NewRateLimitedClient(c, opts.RateLimitRPS, opts.RateBurst)
	}
	return c
}
