// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/middleware"
	"github.com/tomtom215/cheerboard/internal/models"
)

// sanitizeLogValue escapes control characters in user-provided values
// before they reach the log.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response. API state changes on every event, so
// responses are never cached.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Success:  true,
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondError sends an error envelope carrying the request ID.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Success: false,
		Error: &models.APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(r.Context()),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// respondNotificationError renders a pipeline fault with the status its
// type and severity map to.
func respondNotificationError(w http.ResponseWriter, r *http.Request, nerr models.NotificationError, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{}, 2)
	}
	details["type"] = nerr.Type
	details["severity"] = nerr.Severity
	respondError(w, r, statusForError(nerr), nerr.Code, nerr.Message, details, nerr.Cause)
}

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(nerr models.NotificationError) int {
	switch nerr.Type {
	case models.ErrorTypeValidation:
		return http.StatusBadRequest
	case models.ErrorTypeAuth:
		return http.StatusUnauthorized
	case models.ErrorTypeProcessing:
		if nerr.Severity.AtLeast(models.SeverityHigh) {
			return http.StatusInternalServerError
		}
		return http.StatusUnprocessableEntity
	case models.ErrorTypeStream, models.ErrorTypeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil, nil)
}

func unavailable(w http.ResponseWriter, r *http.Request, component string) {
	respondError(w, r, http.StatusServiceUnavailable, "NOT_READY", component+" is not available", nil, nil)
}
