// Package respond writes the {code, message, data} envelope every route
// answers with.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope wraps every API response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes data under message with the given status.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, Envelope{Code: status, Message: message, Data: data})
}

// Error writes an envelope without data.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, Envelope{Code: status, Message: message})
}

// write encodes the body before the status goes out, so a payload that fails
// to marshal (a NaN, a cyclic value) turns into a 500 envelope instead of a
// truncated success.
func write(w http.ResponseWriter, payload Envelope) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("respond: encode payload failed", "status", payload.Code, "message", payload.Message, "error", err)
		payload = Envelope{Code: http.StatusInternalServerError, Message: "failed to encode response"}
		body, _ = json.Marshal(payload)
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(payload.Code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("respond: write failed", "status", payload.Code, "error", err)
	}
}
