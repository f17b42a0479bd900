// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package models

// QueueState is a snapshot of the delivery queue.
//
// Invariants: IsDisplaying == (CurrentNotification != nil) and
// len(QueuedNotifications) <= MaxQueueSize.
type QueueState struct {
	CurrentNotification *ChallengeCompletionEvent  `json:"currentNotification"`
	QueuedNotifications []ChallengeCompletionEvent `json:"queuedNotifications"`
	IsDisplaying        bool                       `json:"isDisplaying"`
	MaxQueueSize        int                        `json:"maxQueueSize"`
	QueueSize           int                        `json:"queueSize"`
	Suspended           bool                       `json:"suspended"`
}

// Pending returns the number of events held by the queue, including the
// one currently displayed.
func (s QueueState) Pending() int {
	if s.CurrentNotification != nil {
		return s.QueueSize + 1
	}
	return s.QueueSize
}
