// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Stream message types sent by the gamification backend.
const (
	MessageTypeChallengeCompleted = "challenge_completed"
	MessageTypeHeartbeat          = "heartbeat"
	MessageTypeConnected          = "connected"
)

// ChallengeCompletionEvent is a single "player completed a challenge"
// occurrence. ID is unique per occurrence and is the deduplication key.
type ChallengeCompletionEvent struct {
	ID            string    `json:"id"`
	PlayerID      string    `json:"playerId"`
	PlayerName    string    `json:"playerName"`
	ChallengeID   string    `json:"challengeId"`
	ChallengeName string    `json:"challengeName"`
	CompletedAt   time.Time `json:"completedAt"`
	Points        *int      `json:"points,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	// Optional classification used by the queue filter.
	ChallengeType string `json:"challengeType,omitempty"`
	Category      string `json:"category,omitempty"`
}

// HasPoints reports whether the event carries a points value.
func (e *ChallengeCompletionEvent) HasPoints() bool {
	return e.Points != nil
}

// PointsValue returns the points value or 0 when absent.
func (e *ChallengeCompletionEvent) PointsValue() int {
	if e.Points == nil {
		return 0
	}
	return *e.Points
}

// StreamMessage is the envelope of every message received on the push
// stream. Data is decoded lazily according to Type.
type StreamMessage struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    string          `json:"timestamp"`
	ConnectionID string          `json:"connectionId,omitempty"`
}

// CompletionData is the raw payload of a challenge_completed message.
// Fields are kept loosely typed so the validator can report type
// mismatches with a severity instead of failing the whole decode.
type CompletionData struct {
	PlayerID      interface{} `json:"playerId"`
	PlayerName    interface{} `json:"playerName"`
	ChallengeID   interface{} `json:"challengeId"`
	ChallengeName interface{} `json:"challengeName"`
	CompletedAt   interface{} `json:"completedAt"`
	Points        interface{} `json:"points,omitempty"`
	ChallengeType interface{} `json:"challengeType,omitempty"`
	Category      interface{} `json:"category,omitempty"`
}

// ConnectedData is the payload of a connected message when the server
// nests the connection id inside data.
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}
