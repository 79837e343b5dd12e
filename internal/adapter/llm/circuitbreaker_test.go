package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completerFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f completerFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := completerFunc(func(context.Context, GenerateRequest) (string, error) {
		return "ok", nil
	})

	cb := NewCircuitBreakerClient(inner, CircuitBreakerConfig{}, testLogger())
	text, err := cb.Generate(context.Background(), GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	callCount := 0
	inner := completerFunc(func(context.Context, GenerateRequest) (string, error) {
		callCount++
		return "", errors.New("provider error")
	})

	cb := NewCircuitBreakerClient(inner, CircuitBreakerConfig{
		MaxFailures: 3,
		Timeout:     5 * time.Second,
	}, testLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Generate(context.Background(), GenerateRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider error")
	}
	assert.Equal(t, 3, callCount)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Generate(context.Background(), GenerateRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 3, callCount)
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	inner := completerFunc(func(context.Context, GenerateRequest) (string, error) {
		return "", context.Canceled
	})

	cb := NewCircuitBreakerClient(inner, CircuitBreakerConfig{MaxFailures: 1}, testLogger())
	for i := 0; i < 3; i++ {
		_, err := cb.Generate(context.Background(), GenerateRequest{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestRateLimitedClientHonoursContext(t *testing.T) {
	calls := 0
	inner := completerFunc(func(context.Context, GenerateRequest) (string, error) {
		calls++
		return "ok", nil
	})

	rl := NewRateLimitedClient(inner, 0.001, 1)
	text, err := rl.Generate(context.Background(), GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rl.Generate(ctx, GenerateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, 1, calls)
}
