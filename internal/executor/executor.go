// Package executor runs stored HTTP actions.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alexiscuevases/ondesk/internal/domain"
	"github.com/alexiscuevases/ondesk/internal/infra/tracer"
)

const maxResponseBytes = 1 << 20

// EndpointGetter looks up stored endpoints.
type EndpointGetter interface {
	GetEndpoint(ctx context.Context, endpointID string) (*domain.Endpoint, error)
}

// Config tunes timeouts and retries.
type Config struct {
	// DefaultTimeout applies per attempt when the endpoint stores none.
	DefaultTimeout time.Duration
	// MaxRetries caps an endpoint's retry_count.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Executor interprets endpoint definitions as HTTP calls.
type Executor struct {
	endpoints EndpointGetter
	client    *http.Client
	cfg       Config
	logger    *slog.Logger
}

// New creates an executor. client may be nil.
func New(endpoints EndpointGetter, client *http.Client, cfg Config, logger *slog.Logger) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	return &Executor{endpoints: endpoints, client: client, cfg: cfg, logger: logger}
}

// Execute looks up endpointID and runs it with params. A missing endpoint or
// a store failure is returned as an error; every other failure is reported
// in the result.
func (e *Executor) Execute(ctx context.Context, endpointID string, params domain.Params) (*domain.ExecutionResult, error) {
	ep, err := e.endpoints.GetEndpoint(ctx, endpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	if ep == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEndpointNotFound, endpointID)
	}
	return e.ExecuteEndpoint(ctx, ep, params), nil
}

// ExecuteEndpoint runs an already loaded endpoint. params is not modified.
func (e *Executor) ExecuteEndpoint(ctx context.Context, ep *domain.Endpoint, params domain.Params) *domain.ExecutionResult {
	ctx, span := tracer.StartSpan(ctx, "executor.execute",
		tracer.StringAttr("endpoint_id", ep.ID),
		tracer.StringAttr("method", string(ep.Method)))
	defer span.End()

	start := time.Now()
	result := e.run(ctx, ep, params)
	result.DurationMs = time.Since(start).Milliseconds()

	if result.Success {
		tracer.SetOK(span)
	} else {
		tracer.RecordError(span, errors.New(result.Error))
		e.logger.Warn("action execution failed",
			"endpoint_id", ep.ID,
			"error", result.Error,
			"attempts", result.Attempts,
		)
	}
	return result
}

type attemptError struct {
	msg       string
	retryable bool
}

func (a *attemptError) Error() string { return a.msg }

func (e *Executor) run(ctx context.Context, ep *domain.Endpoint, params domain.Params) *domain.ExecutionResult {
	if err := ValidateParams(ep, params); err != nil {
		e.logger.Warn("action parameters do not match schema", "endpoint_id", ep.ID, "error", err)
	}

	target, rest := ExpandURL(ep.URL, params)

	var body []byte
	if ep.Method.HasQueryPayload() {
		target = AppendQuery(target, rest)
	} else {
		var err error
		body, err = json.Marshal(rest)
		if err != nil {
			return &domain.ExecutionResult{Success: false, Error: fmt.Sprintf("failed to encode body: %v", err)}
		}
	}

	timeout := e.cfg.DefaultTimeout
	if ep.TimeoutMs > 0 {
		timeout = time.Duration(ep.TimeoutMs) * time.Millisecond
	}

	retries := ep.RetryCount
	if retries > e.cfg.MaxRetries {
		retries = e.cfg.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.InitialBackoff
	policy.MaxInterval = e.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	var (
		attempts int
		status   int
		data     any
	)
	op := func() error {
		attempts++
		var err error
		status, data, err = e.attempt(ctx, ep, target, body, timeout)
		if err == nil {
			return nil
		}
		var ae *attemptError
		if errors.As(err, &ae) && !ae.retryable {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	if err != nil {
		return &domain.ExecutionResult{Success: false, Error: err.Error(), StatusCode: status, Attempts: attempts}
	}
	return &domain.ExecutionResult{Success: true, Data: data, StatusCode: status, Attempts: attempts}
}

// attempt performs one HTTP call bounded by timeout.
func (e *Executor) attempt(ctx context.Context, ep *domain.Endpoint, target string, body []byte, timeout time.Duration) (int, any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, string(ep.Method), target, reader)
	if err != nil {
		return 0, nil, &attemptError{msg: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ep.HeadersSchema {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, &attemptError{msg: err.Error(), retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return resp.StatusCode, nil, &attemptError{
			msg:       fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &attemptError{msg: fmt.Sprintf("failed to read response: %v", err), retryable: true}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		data = map[string]any{}
	}
	return resp.StatusCode, data, nil
}
