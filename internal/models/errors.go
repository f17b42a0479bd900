// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import (
	"fmt"
	"time"
)

// ErrorType classifies where a fault originated.
type ErrorType string

const (
	ErrorTypeStream     ErrorType = "stream"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeProcessing ErrorType = "processing"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSystem     ErrorType = "system"

	// ErrorTypeAuth is only produced at the webhook boundary and is never
	// routed to the recovery engine.
	ErrorTypeAuth ErrorType = "auth"
)

// Severity grades a fault independently of its type.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 0 (low) to 3 (critical).
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Error codes.
const (
	// stream
	CodeConnectionFailed             = "CONNECTION_FAILED"
	CodeConnectionTimeout            = "CONNECTION_TIMEOUT"
	CodeConnectionLost               = "CONNECTION_LOST"
	CodeHeartbeatTimeout             = "HEARTBEAT_TIMEOUT"
	CodeMaxReconnectAttemptsExceeded = "MAX_RECONNECT_ATTEMPTS_EXCEEDED"

	// network
	CodeNetworkUnreachable = "NETWORK_UNREACHABLE"
	CodePollFailed         = "POLL_FAILED"

	// processing
	CodeProcessingFailed = "PROCESSING_FAILED"
	CodeHandlerPanic     = "HANDLER_PANIC"

	// validation
	CodeInvalidJSON  = "INVALID_JSON"
	CodeInvalidEvent = "INVALID_EVENT"

	// system
	CodeQueueOverflow         = "QUEUE_OVERFLOW"
	CodeQueueProcessingFailed = "QUEUE_PROCESSING_FAILED"
	CodeInitializationFailed  = "INITIALIZATION_FAILED"

	// auth
	CodeInvalidSignature = "INVALID_SIGNATURE"
)

// NotificationError is the fault value created at every failure boundary
// of the pipeline and consumed by the recovery engine.
type NotificationError struct {
	Type        ErrorType `json:"type"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Recoverable bool      `json:"recoverable"`
	Severity    Severity  `json:"severity"`

	Cause error `json:"-"`
}

// NewNotificationError builds a NotificationError stamped with now and
// with Recoverable derived from the type and code.
func NewNotificationError(typ ErrorType, code string, severity Severity, message string, now time.Time) NotificationError {
	return NotificationError{
		Type:        typ,
		Code:        code,
		Message:     message,
		Timestamp:   now,
		Recoverable: IsRecoverable(typ, code),
		Severity:    severity,
	}
}

// WithCause returns a copy of e wrapping cause.
func (e NotificationError) WithCause(cause error) NotificationError {
	e.Cause = cause
	return e
}

// Error implements the error interface.
func (e NotificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e NotificationError) Unwrap() error {
	return e.Cause
}

// IsRecoverable reports whether a retry can change the outcome of a fault.
// Validation and auth failures concern a single item and are never
// retried. An overflowed event is dropped by policy.
func IsRecoverable(typ ErrorType, code string) bool {
	switch typ {
	case ErrorTypeValidation, ErrorTypeAuth:
		return false
	case ErrorTypeSystem:
		return code != CodeQueueOverflow
	default:
		return true
	}
}
