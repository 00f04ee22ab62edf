package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"telemetry-chatbot/internal/pipeline"
	"telemetry-chatbot/pkg/logging/logging"

	"go.uber.org/zap"
)

// QueryService is the pipeline behind POST /query.
type QueryService interface {
	Handle(ctx context.Context, message string) pipeline.Outcome
}

type QueryRequest struct {
	Message string `json:"message"`
}

// QueryHandler holds dependencies for the /query endpoint.
type QueryHandler struct {
	Service QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{Service: svc}
}

// Query handles POST /query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, pipeline.Envelope{
			Success: false,
			Message: pipeline.MsgInvalidQuery,
			Error:   "invalid JSON body",
		})
		return
	}

	out := h.Service.Handle(ctx, req.Message)

	if out.Status == http.StatusTooManyRequests && out.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(out.RetryAfter.Seconds()))))
	}

	status := out.Status
	if status == 0 {
		status = http.StatusOK
	}

	logger.Info("query handled",
		zap.Bool("success", out.Envelope.Success),
		zap.Int("status", status),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeJSON(w, status, out.Envelope)
}
