package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/dialogue-tree/internal/dialogue"
	"github.com/capitalize-ai/dialogue-tree/internal/model"
	"github.com/capitalize-ai/dialogue-tree/internal/service"
)

// Error codes returned in the code field of error bodies.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeNotFound        = "not_found"
	CodeCannotJumpRoot  = "cannot_jump_to_root"
	CodeSwitchInFlight  = "switch_in_flight"
	CodeEditInFlight    = "edit_in_flight"
	CodeUpstreamFailure = "upstream_failure"
	CodeCorruptTree     = "corrupt_tree"
	CodeInvalidSnapshot = "invalid_snapshot"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, model.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// errorStatus maps a service error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrTreeNotFound), errors.Is(err, dialogue.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, dialogue.ErrInvalidTarget):
		return http.StatusUnprocessableEntity, CodeCannotJumpRoot
	case errors.Is(err, service.ErrInvalidSnapshot):
		return http.StatusUnprocessableEntity, CodeInvalidSnapshot
	case errors.Is(err, dialogue.ErrSwitchInFlight):
		return http.StatusConflict, CodeSwitchInFlight
	case errors.Is(err, dialogue.ErrEditInFlight):
		return http.StatusConflict, CodeEditInFlight
	case errors.Is(err, dialogue.ErrUpstreamFailure):
		return http.StatusBadGateway, CodeUpstreamFailure
	case errors.Is(err, dialogue.ErrCorruptTree):
		return http.StatusInternalServerError, CodeCorruptTree
	case errors.Is(err, service.ErrEventsUnavailable):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
