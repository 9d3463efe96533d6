package moderation

import (
	"sync"
	"time"
)

// WindowKey identifies one sliding window. Spam and flood windows for
// the same user are independent keys.
type WindowKey struct {
	GroupID int64
	UserID  int64
	Rule    RuleKind
}

// RateWindowTracker counts events inside a trailing time window per
// key. Windows are created lazily and dropped as soon as pruning
// leaves them empty.
type RateWindowTracker struct {
	mu      sync.Mutex
	windows map[WindowKey][]time.Time
}

func NewRateWindowTracker() *RateWindowTracker {
	return &RateWindowTracker{
		windows: make(map[WindowKey][]time.Time),
	}
}

// Record registers one event at `now` and returns the number of events
// with timestamps in (now-window, now]. Entries that fell out of the
// window are discarded before counting.
func (t *RateWindowTracker) Record(key WindowKey, now time.Time, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := append(t.windows[key], now)
	entries = pruneWindow(entries, now.Add(-window))
	t.windows[key] = entries
	return len(entries)
}

// Count reports the window size at `now` without registering an event.
func (t *RateWindowTracker) Count(key WindowKey, now time.Time, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := pruneWindow(t.windows[key], now.Add(-window))
	if len(entries) == 0 {
		delete(t.windows, key)
		return 0
	}
	t.windows[key] = entries
	return len(entries)
}

// Reset clears the window for a key. Used after a sanction fires so
// the same burst does not immediately re-trigger.
func (t *RateWindowTracker) Reset(key WindowKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key)
}

// ResetUser clears all windows for a (group, user) pair.
func (t *RateWindowTracker) ResetUser(groupID, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.windows {
		if key.GroupID == groupID && key.UserID == userID {
			delete(t.windows, key)
		}
	}
}

// Len reports the number of live windows, for gauge metrics.
func (t *RateWindowTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// pruneWindow drops entries at or before cutoff. Entries are appended
// in monotonic order, so the survivors are a suffix.
func pruneWindow(entries []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(entries) && !entries[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return entries
	}
	return append(entries[:0], entries[idx:]...)
}
