// Package shared holds response helpers used by every HTTP handler. All
// responses use one envelope: {"success": true, "data": ...} on success and
// {"success": false, "message": ...} on failure.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "sproutmarket/pkg/domain-errors"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a success envelope with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// WriteError maps the error's domain code to an HTTP status and writes a
// failure envelope. Unknown errors come out as 500 with a generic message so
// internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}
