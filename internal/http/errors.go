// Package httpapi exposes the checkout widget over HTTP: a JSON API where
// every call is one form event, and a server-rendered view of the same form.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// statusForError maps workflow errors to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrInvalidForm):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, checkout.ErrSubmitInFlight):
		return http.StatusConflict, "submit_in_flight"
	case errors.Is(err, checkout.ErrFormDisabled):
		return http.StatusConflict, "form_disabled"
	case errors.Is(err, checkout.ErrClosed):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	details := ""
	if status != http.StatusNotFound && status != http.StatusInternalServerError {
		details = err.Error()
	}
	WriteJSONError(w, status, code, details)
}
