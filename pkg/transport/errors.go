package transport

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rhuss/tokengate/pkg/auth"
)

// ErrorBody is the JSON error envelope: {"code":<status>,"message":<text>}.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing JSON response failed", "error", err)
	}
}

// WriteError writes an ErrorBody with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Code: status, Message: message})
}

// WriteRejection writes the response for an authentication rejection.
func WriteRejection(w http.ResponseWriter, rej auth.Rejection) {
	WriteJSON(w, rej.Status, ErrorBody{Code: rej.Code, Message: rej.Message})
}
