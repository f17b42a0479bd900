// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

// Package validation provides struct validation using go-playground/validator v10.
//
// It is used at both inbound boundaries: the stream client validates the
// coerced fields of every challenge_completed message, and the webhook
// handler validates request bodies before they reach the queue.
//
// # Quick Start
//
//	type completionRequest struct {
//	    ID          string `json:"id" validate:"required,notblank"`
//	    CompletedAt string `json:"completedAt" validate:"required,rfc3339"`
//	    Points      *int   `json:"points" validate:"omitempty,gte=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// # Field Names
//
// Errors report the json tag name of the failed field, so messages read
// "playerId is required" rather than "PlayerID is required".
//
// # Custom Tags
//
//   - rfc3339: ISO-8601 / RFC 3339 timestamp, fractional seconds allowed
//   - notblank: non-whitespace string content
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use.
package validation
