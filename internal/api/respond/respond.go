// Package respond holds the JSON response helpers shared by every handler,
// including the mapping from the service error taxonomy to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/openvcon/vconstore/internal/model"
)

// ErrorResponse is the standard error payload. Violations is populated for
// validation failures only.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Code       int               `json:"code"`
	Message    string            `json:"message,omitempty"`
	Violations []model.Violation `json:"violations,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes a standardized error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    statusCode,
		Message: message,
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// WriteServiceError maps the lifecycle error taxonomy onto HTTP statuses:
// validation 400, not found 404, hook rejection 403, store down 503,
// anything else 500. Validation responses carry the full violation list.
func WriteServiceError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      http.StatusText(http.StatusBadRequest),
			Code:       http.StatusBadRequest,
			Message:    "validation failed",
			Violations: ve.Violations,
		})
		return
	}
	switch {
	case model.IsNotFoundError(err):
		WriteNotFound(w, err.Error())
	case model.IsHookRejection(err):
		WriteError(w, http.StatusForbidden, err.Error())
	case model.IsStoreUnavailable(err):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		WriteInternalError(w, err.Error())
	}
}
