package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient bounds the request rate sent to the provider.
type RateLimitedClient struct {
	inner   Completer
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a token bucket of rps and burst.
func NewRateLimitedClient(inner Completer, rps float64, burst int) *RateLimitedClient {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for a token, then calls the wrapped provider.
func (c *RateLimitedClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return c.inner.Generate(ctx, req)
}
