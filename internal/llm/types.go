package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client turns a prompt into completion text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrUnconfigured means no API key is available. Never retried.
	ErrUnconfigured = errors.New("llmclient: API key not configured")

	// ErrModelUnavailable means the upstream answered 404 for the model.
	ErrModelUnavailable = errors.New("llmclient: model not found or unavailable")

	// ErrNoContent means the upstream returned zero candidates.
	ErrNoContent = errors.New("llmclient: no candidates returned")
)

// RateLimitedError is returned on HTTP 429. It is surfaced, not retried.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("llmclient: rate limited, retry after %s", e.RetryAfter)
}

// ServerError is a 5xx response that outlived the retry budget.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("llmclient: upstream %d: %s", e.Status, e.Body)
}

// NetworkError is a transport failure that outlived the retry budget.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("llmclient: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError is any other non-2xx response.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llmclient: upstream %d: %s", e.Status, e.Message)
}
