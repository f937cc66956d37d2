// Package httpapi is the HTTP presentation layer. Handlers decode requests,
// call a service port, and translate coded domain errors into a consistent
// JSON error envelope. No business rules live here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError maps a domain error onto the wire envelope. Internal errors are
// logged with the request ID and returned without their cause so storage
// details never leak to callers.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		message = "internal error"
	}

	WriteJSON(w, status, errorResponse{Error: string(code), Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, r, logger, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return false
	}
	return true
}
