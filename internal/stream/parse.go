// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package stream

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cheerboard/internal/models"
	"github.com/tomtom215/cheerboard/internal/validation"
)

// futureTolerance is how far completedAt may run ahead of the receive time
// before it is flagged.
const futureTolerance = time.Minute

// Issue is a field-level problem found in an inbound event.
type Issue struct {
	Field    string          `json:"field"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// fieldSeverity is the severity of a missing, mistyped or invalid field.
// Identity and completion time are required for display; names, the
// envelope timestamp and points have fallbacks.
var fieldSeverity = map[string]models.Severity{
	"id":            models.SeverityHigh,
	"playerId":      models.SeverityHigh,
	"challengeId":   models.SeverityHigh,
	"completedAt":   models.SeverityHigh,
	"playerName":    models.SeverityMedium,
	"challengeName": models.SeverityMedium,
	"timestamp":     models.SeverityMedium,
	"points":        models.SeverityMedium,
}

// completionFields holds the coerced string form of a completion payload
// for struct validation.
type completionFields struct {
	ID            string   `json:"id" validate:"required,notblank"`
	PlayerID      string   `json:"playerId" validate:"required,notblank"`
	PlayerName    string   `json:"playerName" validate:"required"`
	ChallengeID   string   `json:"challengeId" validate:"required,notblank"`
	ChallengeName string   `json:"challengeName" validate:"required"`
	CompletedAt   string   `json:"completedAt" validate:"required,rfc3339"`
	Timestamp     string   `json:"timestamp" validate:"required,rfc3339"`
	Points        *float64 `json:"points,omitempty" validate:"omitempty,gte=0"`
}

// decodeMessage parses a wire envelope. Any JSON error is returned
// unchanged so the caller can classify it.
func decodeMessage(data []byte) (models.StreamMessage, error) {
	var msg models.StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("message has no type")
	}
	return msg, nil
}

// issueSet collects at most one issue per field.
type issueSet struct {
	issues []Issue
	seen   map[string]bool
}

func (s *issueSet) add(field, message string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[field] {
		return
	}
	s.seen[field] = true
	sev, ok := fieldSeverity[field]
	if !ok {
		sev = models.SeverityLow
	}
	s.issues = append(s.issues, Issue{Field: field, Severity: sev, Message: message})
}

func (s *issueSet) addWithSeverity(field string, sev models.Severity, message string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[field] {
		return
	}
	s.seen[field] = true
	s.issues = append(s.issues, Issue{Field: field, Severity: sev, Message: message})
}

// ParseCompletion validates a challenge_completed envelope and builds the
// event. ok is false when any issue is high or critical; otherwise the event
// is returned with fallbacks applied and the lower-severity issues listed.
func ParseCompletion(msg models.StreamMessage, receivedAt time.Time) (ev models.ChallengeCompletionEvent, issues []Issue, ok bool) {
	var set issueSet

	var data models.CompletionData
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		set.addWithSeverity("data", models.SeverityHigh, "data is required")
	} else if err := json.Unmarshal(msg.Data, &data); err != nil {
		set.addWithSeverity("data", models.SeverityHigh, "data must be an object")
	}

	fields := completionFields{
		ID:            msg.ID,
		PlayerID:      coerceString(&set, "playerId", data.PlayerID),
		PlayerName:    coerceString(&set, "playerName", data.PlayerName),
		ChallengeID:   coerceString(&set, "challengeId", data.ChallengeID),
		ChallengeName: coerceString(&set, "challengeName", data.ChallengeName),
		CompletedAt:   coerceString(&set, "completedAt", data.CompletedAt),
		Timestamp:     msg.Timestamp,
		Points:        coercePoints(&set, data.Points),
	}

	if verr := validation.ValidateStruct(&fields); verr != nil {
		for _, fe := range verr.Errors() {
			set.add(fe.Field(), fe.Error())
		}
	}

	if blocking(set.issues) {
		return ev, set.issues, false
	}

	ev = models.ChallengeCompletionEvent{
		ID:            fields.ID,
		PlayerID:      fields.PlayerID,
		PlayerName:    fields.PlayerName,
		ChallengeID:   fields.ChallengeID,
		ChallengeName: fields.ChallengeName,
		Timestamp:     receivedAt,
		ChallengeType: optionalString(data.ChallengeType),
		Category:      optionalString(data.Category),
	}

	// completedAt passed validation, so this parse cannot fail.
	ev.CompletedAt, _ = time.Parse(time.RFC3339Nano, fields.CompletedAt)

	if ts, err := time.Parse(time.RFC3339Nano, fields.Timestamp); err == nil {
		ev.Timestamp = ts
	}
	if ev.PlayerName == "" {
		ev.PlayerName = ev.PlayerID
	}
	if ev.ChallengeName == "" {
		ev.ChallengeName = ev.ChallengeID
	}
	if !set.seen["points"] && fields.Points != nil {
		p := int(*fields.Points)
		ev.Points = &p
	}
	if ev.CompletedAt.After(receivedAt.Add(futureTolerance)) {
		set.addWithSeverity("completedAt", models.SeverityLow, "completedAt is in the future")
	}

	return ev, set.issues, true
}

func blocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity.AtLeast(models.SeverityHigh) {
			return true
		}
	}
	return false
}

// highestSeverity returns the most severe issue level, or low when empty.
func highestSeverity(issues []Issue) models.Severity {
	sev := models.SeverityLow
	for _, is := range issues {
		if is.Severity.Rank() > sev.Rank() {
			sev = is.Severity
		}
	}
	return sev
}

func summarize(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.Message
	}
	return strings.Join(parts, "; ")
}

func coerceString(set *issueSet, field string, v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		set.add(field, field+" must be a string")
		return ""
	}
}

func optionalString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func coercePoints(set *issueSet, v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		set.add("points", "points must be a number")
		return nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 {
		set.add("points", "points must be an integer")
		return nil
	}
	return &f
}
