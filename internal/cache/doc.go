// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

/*
Package cache provides the bounded in-memory caches used by Cheerboard.

# Bounded

Bounded[V] is a TTL cache with two budgets: an approximate byte size
(estimated from the JSON encoding of each value) and an entry count.

	c := cache.NewBounded[json.RawMessage](cache.Config{
	    Name:         "upstream",
	    MaxSizeBytes: 10 * 1024 * 1024,
	    MaxEntries:   1000,
	    DefaultTTL:   5 * time.Minute,
	})

	c.Set("players:p1", body)             // default TTL
	c.Set("challenges:c1", body, time.Hour)
	if v, ok := c.Get("players:p1"); ok { ... }

Expiry is lazy on Get and active in Cleanup, which Serve runs on a ticker
so the cache can be added to the supervisor tree directly.

When a Set would exceed a budget, entries are evicted least-used first
(ascending hit count), oldest first on ties, removing at most half the
cache per pass. A Set that still does not fit is rejected and returns
false. Nil values are never cached.

# RecentSet

RecentSet is a bounded, insertion-ordered set of ids backed by a doubly
linked list and a map. The delivery queue uses it to drop events it has
already processed:

	seen := cache.NewRecentSet(1000)
	if seen.Seen(ev.ID) {
	    return // duplicate
	}

# Thread Safety

Both types guard their state with a single mutex and are safe for
concurrent use.
*/
package cache
