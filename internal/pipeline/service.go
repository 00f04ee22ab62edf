// Package pipeline answers a question end to end: classify, fetch or
// generate a script, run it, and wrap whatever happened in an Envelope.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"telemetry-chatbot/internal/cache"
	"telemetry-chatbot/internal/llm"
	"telemetry-chatbot/internal/metrics"
	"telemetry-chatbot/internal/prompt"
	"telemetry-chatbot/internal/sandbox"
	"telemetry-chatbot/internal/sanitize"
	"telemetry-chatbot/pkg/logging/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Executor runs a sanitized script. *sandbox.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, code string) (*sandbox.Result, error)
}

type Config struct {
	// DebugAnalysis logs generated scripts and attaches diagnostics to
	// failed runs.
	DebugAnalysis bool
}

// Service owns the script cache handle and the collaborators of one
// pipeline instance.
type Service struct {
	cfg      Config
	scripts  *cache.ScriptCache
	llm      llm.Client
	executor Executor

	// collapses concurrent misses for the same cache key
	flights singleflight.Group
}

func NewService(cfg Config, scripts *cache.ScriptCache, client llm.Client, executor Executor) *Service {
	return &Service{
		cfg:      cfg,
		scripts:  scripts,
		llm:      client,
		executor: executor,
	}
}

// Handle produces exactly one Outcome for message. It never panics.
func (s *Service) Handle(ctx context.Context, message string) (out Outcome) {
	logger := logging.L(ctx)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("query handler panic", zap.Any("panic", p), zap.Stack("stack"))
			out = failure(MsgUnexpected, fmt.Sprint(p))
		}
	}()

	message = strings.TrimSpace(message)
	if message == "" {
		return failure(MsgInvalidQuery, ErrEmptyMessage)
	}

	if !IsVehicleQuery(message) {
		logger.Info("query out of domain", zap.Int("query_len", len(message)))
		return ok(Envelope{Success: true, Message: MsgOutOfDomain})
	}

	script, err := s.script(ctx, message)
	if err != nil {
		return completionFailure(ctx, err)
	}

	res, err := s.executor.Execute(ctx, script)
	if err != nil {
		return s.scriptFailure(ctx, script, res, err)
	}

	logger.Info("query answered",
		zap.Int("result_len", len(res.Text)),
		zap.String("fallback_source", res.Diagnostics.FallbackSource),
		zap.Int64("duration_ms", res.Diagnostics.DurationMs),
	)

	return ok(Envelope{
		Success: true,
		Message: res.Text,
		Data:    &Data{Script: script, Debug: res.Diagnostics},
	})
}

// script returns the cached script for message, or generates, sanitizes
// and caches a new one. Concurrent misses on one key share a single
// completion.
func (s *Service) script(ctx context.Context, message string) (string, error) {
	if script, hit := s.scripts.Get(ctx, message); hit {
		return script, nil
	}

	// One caller's disconnect must not fail the others waiting on the flight.
	flightCtx := context.WithoutCancel(ctx)

	v, err, shared := s.flights.Do(s.scripts.Key(message), func() (any, error) {
		// a flight that just finished may have filled the cache
		if script, hit := s.scripts.Get(flightCtx, message); hit {
			return script, nil
		}

		raw, err := s.llm.Complete(flightCtx, prompt.Build(message))
		metrics.CompletionsTotal.WithLabelValues(completionOutcome(err)).Inc()
		if err != nil {
			return nil, err
		}

		script := sanitize.Code(raw)
		if s.cfg.DebugAnalysis {
			logging.L(flightCtx).Info("generated script",
				zap.Int("raw_len", len(raw)),
				zap.Int("sanitized_len", len(script)),
				zap.String("script", script),
			)
		}

		if err := s.scripts.Put(flightCtx, message, script); err != nil {
			logging.L(flightCtx).Warn("script cache write failed", zap.Error(err))
		}
		return script, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logging.L(ctx).Debug("script generation shared with concurrent request")
	}
	return v.(string), nil
}

func completionFailure(ctx context.Context, err error) Outcome {
	logger := logging.L(ctx)

	var rl *llm.RateLimitedError
	if errors.As(err, &rl) {
		logger.Warn("completion rate limited", zap.Duration("retry_after", rl.RetryAfter))
		return Outcome{
			Envelope: Envelope{
				Success: false,
				Message: MsgRateLimited,
				Error:   fmt.Sprintf("AI service rate limit exceeded. Retry after %d seconds", retrySeconds(rl.RetryAfter)),
			},
			Status:     http.StatusTooManyRequests,
			RetryAfter: rl.RetryAfter,
		}
	}

	logger.Error("completion failed", zap.Error(err))
	return failure(MsgCouldNotHandle, completionErrorText(err))
}

// completionErrorText is the caller-visible description of a completion
// failure. Upstream bodies stay in the logs.
func completionErrorText(err error) string {
	var (
		se *llm.ServerError
		ne *llm.NetworkError
		ue *llm.UpstreamError
	)
	switch {
	case errors.Is(err, llm.ErrUnconfigured):
		return "AI service is not configured"
	case errors.Is(err, llm.ErrModelUnavailable):
		return "AI model not available"
	case errors.Is(err, llm.ErrNoContent):
		return "AI service returned no content"
	case errors.As(err, &se):
		return fmt.Sprintf("AI service unavailable (status %d)", se.Status)
	case errors.As(err, &ne):
		return "AI service network error"
	case errors.As(err, &ue):
		return fmt.Sprintf("AI service error (status %d)", ue.Status)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "AI service request cancelled"
	default:
		return "AI service error"
	}
}

func completionOutcome(err error) string {
	var (
		rl *llm.RateLimitedError
		se *llm.ServerError
		ne *llm.NetworkError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.Is(err, llm.ErrUnconfigured):
		return "unconfigured"
	case errors.Is(err, llm.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, llm.ErrNoContent):
		return "no_content"
	case errors.As(err, &se):
		return "server_error"
	case errors.As(err, &ne):
		return "network_error"
	default:
		return "upstream_error"
	}
}

func (s *Service) scriptFailure(ctx context.Context, script string, res *sandbox.Result, err error) Outcome {
	errText := "Script execution failed: " + err.Error()

	var se *sandbox.ScriptError
	if errors.As(err, &se) {
		switch se.Kind {
		case sandbox.KindTimeout:
			errText = ErrScriptTimeout
		default:
			errText = "Script execution failed: " + se.Detail()
		}
		logging.L(ctx).Error("script failed", zap.String("kind", string(se.Kind)), zap.Error(se.Err))
	} else {
		logging.L(ctx).Error("script failed", zap.Error(err))
	}

	out := failure(MsgCouldNotHandle, errText)
	if s.cfg.DebugAnalysis && res != nil {
		out.Envelope.Data = &Data{Script: script, Debug: res.Diagnostics}
	}
	return out
}

// retrySeconds rounds up so a 500ms hint is not reported as 0.
func retrySeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
