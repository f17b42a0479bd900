// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package cache

import "sync"

// recentEntry is a node of the insertion-ordered list.
type recentEntry struct {
	key  string
	prev *recentEntry
	next *recentEntry
}

// RecentSet is a bounded set of recently seen ids. When full, the id that
// was first seen longest ago is dropped. Re-observing an id does not
// refresh its position, so the set always reflects the last capacity
// distinct ids in arrival order.
//
// Performance: O(1) Seen, Contains and Remove.
type RecentSet struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*recentEntry

	// Sentinels: head.next is newest, tail.prev is oldest.
	head *recentEntry
	tail *recentEntry
}

// NewRecentSet creates a set holding at most capacity ids.
func NewRecentSet(capacity int) *RecentSet {
	if capacity <= 0 {
		capacity = 1000
	}
	s := &RecentSet{
		capacity: capacity,
		items:    make(map[string]*recentEntry, capacity),
		head:     &recentEntry{},
		tail:     &recentEntry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Seen records id and reports whether it was already present.
func (s *RecentSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return true
	}

	e := &recentEntry{key: id}
	s.addToFront(e)
	s.items[id] = e

	for len(s.items) > s.capacity {
		s.removeEntry(s.tail.prev)
	}
	return false
}

// Contains reports whether id is present without recording it.
func (s *RecentSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok
}

// Remove deletes id and reports whether it was present.
func (s *RecentSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[id]; ok {
		s.removeEntry(e)
		return true
	}
	return false
}

// Len returns the number of ids held.
func (s *RecentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Capacity returns the configured bound.
func (s *RecentSet) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Resize changes the bound, trimming the oldest ids if needed.
func (s *RecentSet) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = capacity
	for len(s.items) > s.capacity {
		s.removeEntry(s.tail.prev)
	}
}

// Oldest returns the id that will be dropped next.
func (s *RecentSet) Oldest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tail.prev == s.head {
		return "", false
	}
	return s.tail.prev.key, true
}

// Clear removes all ids.
func (s *RecentSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*recentEntry, s.capacity)
	s.head.next = s.tail
	s.tail.prev = s.head
}

func (s *RecentSet) addToFront(e *recentEntry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *RecentSet) removeEntry(e *recentEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(s.items, e.key)
}
