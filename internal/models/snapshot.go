// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import "time"

// Snapshot is the combined pipeline state sent to a display when it joins
// and served by the state endpoints.
type Snapshot struct {
	Queue       QueueState      `json:"queue"`
	Connection  ConnectionState `json:"connection"`
	Recovery    RecoveryStatus  `json:"recovery"`
	GeneratedAt time.Time       `json:"generatedAt"`
}
