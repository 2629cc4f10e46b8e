package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"overlayd/internal/autospin"
	"overlayd/internal/queue"
	"overlayd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to status codes and a rejection reason for
// metrics.
func statusFor(err error) (int, string) {
	var he HTTPError
	switch {
	case queue.IsBadOption(err):
		return http.StatusBadRequest, "bad_option"
	case queue.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, autospin.ErrNoOptions):
		return http.StatusConflict, "no_options"
	case errors.As(err, &he):
		return he.StatusCode(), "service"
	}
	return http.StatusInternalServerError, "internal"
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
