// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import "time"

// ConnectionStatus is the stream client's state machine position.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// String implements fmt.Stringer.
func (s ConnectionStatus) String() string {
	return string(s)
}

// ConnectionState is a snapshot of the stream client.
//
// ReconnectAttempts counts consecutive failures since the last successful
// connection and never exceeds MaxReconnectAttempts.
type ConnectionState struct {
	Status               ConnectionStatus `json:"status"`
	LastConnected        *time.Time       `json:"lastConnected,omitempty"`
	ReconnectAttempts    int              `json:"reconnectAttempts"`
	MaxReconnectAttempts int              `json:"maxReconnectAttempts"`
	Error                string           `json:"error,omitempty"`
	ConnectionID         string           `json:"connectionId,omitempty"`
}

// IsConnected reports whether the stream is currently delivering events.
func (s ConnectionState) IsConnected() bool {
	return s.Status == StatusConnected
}
