// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package queue

import (
	"strings"

	"github.com/tomtom215/cheerboard/internal/models"
)

// Filter admits events by challenge type and category allow-lists. An
// empty list allows everything; an event that does not carry the attribute
// is allowed. Matching is case-insensitive.
type Filter struct {
	challengeTypes map[string]struct{}
	categories     map[string]struct{}
}

// NewFilter builds a filter from allow-lists.
func NewFilter(challengeTypes, categories []string) Filter {
	return Filter{
		challengeTypes: toSet(challengeTypes),
		categories:     toSet(categories),
	}
}

// Allows reports whether ev passes the filter.
func (f Filter) Allows(ev models.ChallengeCompletionEvent) bool {
	return allowed(f.challengeTypes, ev.ChallengeType) && allowed(f.categories, ev.Category)
}

func allowed(set map[string]struct{}, value string) bool {
	if len(set) == 0 || value == "" {
		return true
	}
	_, ok := set[strings.ToLower(value)]
	return ok
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
