package pipeline

import (
	"net/http"
	"time"

	"telemetry-chatbot/internal/sandbox"
)

// User-facing messages.
const (
	MsgInvalidQuery   = "Please provide a valid query."
	MsgOutOfDomain    = "Sorry, I can't help you with that. I can only assist with vehicle data queries."
	MsgCouldNotHandle = "Sorry, I couldn't process your query."
	MsgUnexpected     = "Sorry, an unexpected error occurred."
	MsgRateLimited    = "Rate limited by AI service"

	ErrEmptyMessage  = "Empty message"
	ErrScriptTimeout = "Script execution timed out"
)

// Envelope is the JSON body of every /query response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *Data  `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Data is attached to successful script runs.
type Data struct {
	Script string              `json:"script"`
	Debug  sandbox.Diagnostics `json:"debug"`
}

// Outcome is an Envelope plus the transport hints that go with it.
type Outcome struct {
	Envelope   Envelope
	Status     int
	RetryAfter time.Duration // set with Status 429
}

func ok(env Envelope) Outcome {
	return Outcome{Envelope: env, Status: http.StatusOK}
}

func failure(message, errText string) Outcome {
	return ok(Envelope{Success: false, Message: message, Error: errText})
}
