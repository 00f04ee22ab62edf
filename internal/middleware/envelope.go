package middleware

import (
	"encoding/json"
	"net/http"
)

// errorEnvelope mirrors the /query response shape so clients can parse
// middleware failures the same way.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message, errText string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Message: message, Error: errText})
}
