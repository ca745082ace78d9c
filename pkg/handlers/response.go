package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeResult writes data with statusCode, logging encoding failures.
func writeResult(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto an HTTP status through the
// apperrors sentinels. Unmapped errors are logged and reported as 500 with
// message, so internals never reach the client.
func writeServiceError(w http.ResponseWriter, err error, message string, logger *zap.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), logger)
	case errors.Is(err, apperrors.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "Access denied", logger)
	case errors.Is(err, apperrors.ErrMalformedResponse):
		logger.Warn(message, zap.String("error", logging.SanitizeError(err)))
		writeError(w, http.StatusBadGateway, "malformed_response", "The completion service returned an unreadable response", logger)
	case errors.Is(err, apperrors.ErrUpstreamFailure):
		logger.Warn(message, zap.String("error", logging.SanitizeError(err)))
		writeError(w, http.StatusBadGateway, "upstream_failure", "The completion service is unavailable", logger)
	default:
		logger.Error(message, zap.String("error", logging.SanitizeError(err)))
		writeError(w, http.StatusInternalServerError, "internal_error", message, logger)
	}
}
