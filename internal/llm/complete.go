package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxPromptSize   = 512 * 1024       // 512KB prompt text
	maxResponseSize = 4 * 1024 * 1024  // 4MB upstream body
	defaultRateWait = 60 * time.Second // when 429 carries no Retry-After
)

// Complete sends prompt as a single user turn and returns the concatenated
// text parts of the first candidate.
func (c *client) Complete(parentCtx context.Context, prompt string) (string, error) {
	start := time.Now()

	if c.cfg.APIKey == "" {
		return "", ErrUnconfigured
	}
	if prompt == "" {
		return "", fmt.Errorf("llmclient: prompt is empty")
	}
	if len(prompt) > maxPromptSize {
		return "", fmt.Errorf("llmclient: prompt too large (%d bytes, max %d)", len(prompt), maxPromptSize)
	}

	c.logger.Info("llm request starting",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_len", len(prompt)),
	)

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	bodyBytes, err := json.Marshal(providerGenerateRequest{
		Contents: []providerContent{
			{Role: "user", Parts: []providerPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: marshal request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/models/" + url.PathEscape(c.cfg.Model) + ":generateContent?" +
		url.Values{"key": {c.cfg.APIKey}}.Encode()

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context, body []byte) (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("llmclient: build HTTP request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(httpReq)
	}

	resp, err := c.doWithRetry(ctx, bodyBytes, doOnce)
	if err != nil {
		// The per-request timeout is a network failure, not a caller cancel.
		if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
			err = &NetworkError{Err: err}
		}
		c.logger.Error("llm request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("read upstream body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.statusError(resp, body)
	}

	var pResp providerGenerateResponse
	if err := json.Unmarshal(body, &pResp); err != nil {
		return "", fmt.Errorf("llmclient: decode upstream response: %w", err)
	}

	if len(pResp.Candidates) == 0 {
		c.logger.Error("llm provider returned no candidates", zap.String("model", c.cfg.Model))
		return "", ErrNoContent
	}

	var text strings.Builder
	for _, part := range pResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	fields := []zap.Field{
		zap.String("model", c.cfg.Model),
		zap.Int("response_chars", text.Len()),
		zap.Duration("duration", time.Since(start)),
	}
	if u := pResp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", u.PromptTokenCount),
			zap.Int("completion_tokens", u.CandidatesTokenCount),
		)
	}
	c.logger.Info("llm request completed", fields...)

	return text.String(), nil
}

// statusError maps a non-2xx response onto the failure taxonomy.
func (c *client) statusError(resp *http.Response, body []byte) error {
	message := truncate(string(body), 500)
	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		message = perr.Error.Message
	}

	c.logger.Error("llm upstream error",
		zap.Int("status", resp.StatusCode),
		zap.String("message", message),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp)
		if wait <= 0 {
			wait = defaultRateWait
		}
		return &RateLimitedError{RetryAfter: wait}
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelUnavailable, c.cfg.Model)
	case shouldRetryStatus(resp.StatusCode):
		return &ServerError{Status: resp.StatusCode, Body: message}
	default:
		return &UpstreamError{Status: resp.StatusCode, Message: message}
	}
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
