// Package handlers exposes the resolution pipeline, replay, audit history,
// and dependency reports over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lucentdata/metricplane/pkg/apperrors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes data as a JSON response with the given status code and
// returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response with an explicit status code.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, errorBody{Error: errorCode, Message: message})
}

// ErrorForKind writes a JSON error response with the status implied by the
// pipeline error kind; the kind doubles as the error code.
func ErrorForKind(w http.ResponseWriter, kind, message string) error {
	return ErrorResponse(w, StatusForKind(kind), kind, message)
}

// StatusForKind maps pipeline error kinds to HTTP status codes.
func StatusForKind(kind string) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindAmbiguity, apperrors.KindCycleDetected:
		return http.StatusConflict
	case apperrors.KindGrainMismatch:
		return http.StatusUnprocessableEntity
	case apperrors.KindMissingParameter, apperrors.KindInvalidParameter:
		return http.StatusBadRequest
	case apperrors.KindPolicyDenied:
		return http.StatusForbidden
	case apperrors.KindExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
