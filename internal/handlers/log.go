package handlers

import (
	"encoding/json"
	"net/http"

	"telemetry-chatbot/pkg/logging/logging"

	"go.uber.org/zap"
)

// ClientLogRequest is a client-side error report.
type ClientLogRequest struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
}

type LogResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ClientLog handles POST /log by recording the report at error level.
func ClientLog(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())

	var req ClientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid client log", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, LogResponse{Success: false, Message: "Failed to log error"})
		return
	}

	logger.Error("frontend error",
		zap.String("client_error", req.Error),
		zap.String("client_timestamp", req.Timestamp),
		zap.String("client_user_agent", req.UserAgent),
		zap.String("client_url", req.URL),
	)

	writeJSON(w, http.StatusOK, LogResponse{Success: true, Message: "Error logged successfully"})
}
