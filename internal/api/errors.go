package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/led"
)

// Error is the body of every error response.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeValidation       = "validation_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone
	}
}

// writeError writes an Error tagged with the request's ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message, RequestID: requestID(r)})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, message)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
}

// deviceErrorStatus maps an error from a device write to its HTTP status
// and error code. ok is false for errors that are the server's fault.
func deviceErrorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, led.ErrNotLoaded), errors.Is(err, chardev.ErrNoDevice):
		return http.StatusServiceUnavailable, ErrCodeUnavailable, true
	case errors.Is(err, led.ErrInvalidCommand), errors.Is(err, chardev.ErrInvalidArgument):
		return http.StatusBadRequest, ErrCodeValidation, true
	}
	return http.StatusInternalServerError, ErrCodeInternal, false
}
