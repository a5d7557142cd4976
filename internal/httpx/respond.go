package httpx

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sundayezeilo/linkshield/internal/errx"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
		Details: details,
	}
	WriteJSON(w, status, resp)
}

// WriteKindError writes err using the status and code of its errx kind.
// Unknown and internal errors get a generic message.
func WriteKindError(w http.ResponseWriter, err error, details any) {
	kind := errx.KindOf(err)
	msg := PublicMessage(err)
	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), msg, details)
}

// PublicMessage is the client-facing text for err.
func PublicMessage(err error) string {
	switch errx.KindOf(err) {
	case errx.Internal, errx.Unknown:
		return "an unexpected error occurred"
	case errx.Unavailable:
		return "service temporarily unavailable"
	}
	for {
		e, ok := err.(*errx.Error)
		if !ok || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}
