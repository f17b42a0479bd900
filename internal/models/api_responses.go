// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import (
	"time"
)

// APIResponse is the envelope of every HTTP API response.
//
// Example successful response:
//
//	{
//	  "success": true,
//	  "data": {"queueSize": 2, ...},
//	  "metadata": {"timestamp": "2026-03-14T12:00:00Z"}
//	}
//
// Example error response:
//
//	{
//	  "success": false,
//	  "error": {
//	    "code": "INVALID_EVENT",
//	    "message": "playerId is required",
//	    "details": {"type": "validation", "severity": "high"},
//	    "requestId": "0b7c..."
//	  },
//	  "metadata": {"timestamp": "2026-03-14T12:00:00Z"}
//	}
type APIResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is the structured error of a failed request.
//
// Common codes:
//   - VALIDATION_ERROR, INVALID_JSON, INVALID_EVENT: bad input
//   - INVALID_SIGNATURE: webhook signature missing or wrong
//   - METHOD_NOT_ALLOWED, NOT_FOUND
//   - STREAM_CONNECT_FAILED, NOT_READY: pipeline unavailable
type APIError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}
