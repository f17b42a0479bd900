// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import "time"

// DegradationLevel describes how much non-essential behavior is shed.
type DegradationLevel int

const (
	DegradationNormal    DegradationLevel = 0
	DegradationWarning   DegradationLevel = 1
	DegradationCritical  DegradationLevel = 2
	DegradationEmergency DegradationLevel = 3
)

// String implements fmt.Stringer.
func (l DegradationLevel) String() string {
	switch l {
	case DegradationNormal:
		return "normal"
	case DegradationWarning:
		return "warning"
	case DegradationCritical:
		return "critical"
	case DegradationEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// AnimationsEnabled reports whether display clients may run non-essential
// animations at this level.
func (l DegradationLevel) AnimationsEnabled() bool {
	return l < DegradationCritical
}

// RecoveryContext tracks retries for one error class.
type RecoveryContext struct {
	Key             string              `json:"key"`
	AttemptCount    int                 `json:"attemptCount"`
	LastAttemptTime time.Time           `json:"lastAttemptTime"`
	ErrorHistory    []NotificationError `json:"errorHistory"`
	StreamConnected bool                `json:"streamConnected"`
	QueueSize       int                 `json:"queueSize"`
}

// RecoveryStatus is the externally visible state of the recovery engine.
type RecoveryStatus struct {
	Level             DegradationLevel    `json:"level"`
	LevelName         string              `json:"levelName"`
	EmergencyMode     bool                `json:"emergencyMode"`
	FallbackActive    bool                `json:"fallbackActive"`
	ActiveContexts    int                 `json:"activeContexts"`
	HistorySize       int                 `json:"historySize"`
	LastErrorAt       *time.Time          `json:"lastErrorAt,omitempty"`
	RecentErrors      []NotificationError `json:"recentErrors"`
	AnimationsEnabled bool                `json:"animationsEnabled"`
}

// RecoveryEvent is the payload of the recovery-* events.
type RecoveryEvent struct {
	Key      string            `json:"key"`
	Strategy string            `json:"strategy"`
	Attempt  int               `json:"attempt"`
	Error    NotificationError `json:"error"`
	Reason   string            `json:"reason,omitempty"`
}

// DegradationEvent is the payload of degradation-activated and
// system-stabilized.
type DegradationEvent struct {
	Level             DegradationLevel `json:"level"`
	LevelName         string           `json:"levelName"`
	PreviousLevel     DegradationLevel `json:"previousLevel"`
	AnimationsEnabled bool             `json:"animationsEnabled"`
	EmergencyMode     bool             `json:"emergencyMode"`
	Reason            string           `json:"reason,omitempty"`
}
