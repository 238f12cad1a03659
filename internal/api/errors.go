package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlabctl/labcore/internal/instrument"
	"github.com/openlabctl/labcore/internal/validate"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeGone           = "gone"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeUpstream       = "instrument_unreachable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps an instrument-layer error onto the HTTP surface.
// The message is the error text itself; sentinel prefixes already carry
// the instrument and parameter names.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	writeError(w, status, code, err.Error())
}

// statusForError translates the instrument error taxonomy to HTTP status
// codes and API error codes.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, instrument.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, validate.ErrInvalidValue):
		return http.StatusUnprocessableEntity, ErrCodeValidation
	case errors.Is(err, instrument.ErrCommunication):
		return http.StatusBadGateway, ErrCodeUpstream
	case errors.Is(err, instrument.ErrClosed):
		return http.StatusGone, ErrCodeGone
	case errors.Is(err, instrument.ErrNotGettable),
		errors.Is(err, instrument.ErrNotSettable):
		return http.StatusMethodNotAllowed, ErrCodeMethodNotAllow
	case errors.Is(err, instrument.ErrNameTaken),
		errors.Is(err, instrument.ErrDuplicateName):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, instrument.ErrInvalidConfig):
		return http.StatusBadRequest, ErrCodeBadRequest
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
