package moderation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "warden/pkg/errors"
)

type userKey struct {
	GroupID int64
	UserID  int64
}

// WarningLedger is the append-only per-user warning log. The active
// count (non-removed warnings) drives escalation decisions.
type WarningLedger struct {
	mu     sync.Mutex
	byUser map[userKey][]*Warning
}

func NewWarningLedger() *WarningLedger {
	return &WarningLedger{
		byUser: make(map[userKey][]*Warning),
	}
}

// AddWarning appends a warning and returns it together with the new
// active count.
func (l *WarningLedger) AddWarning(groupID, userID int64, reason string, issuedBy int64, now time.Time) (Warning, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userKey{GroupID: groupID, UserID: userID}
	warning := &Warning{
		ID:       uuid.New().String(),
		GroupID:  groupID,
		UserID:   userID,
		Reason:   reason,
		IssuedBy: issuedBy,
		IssuedAt: now,
		Active:   true,
	}
	l.byUser[key] = append(l.byUser[key], warning)

	return *warning, l.activeCountLocked(key)
}

// RemoveWarningAt removes the warning at `index` in the user's active
// list (zero-based, issuance order). Out-of-range indexes fail with
// INVALID_INDEX and leave state unchanged.
func (l *WarningLedger) RemoveWarningAt(groupID, userID int64, index int) (Warning, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userKey{GroupID: groupID, UserID: userID}
	active := l.activeLocked(key)
	if index < 0 || index >= len(active) {
		return Warning{}, pkgerrors.ErrInvalidIndex.WithDetail("index", index).WithDetail("active_count", len(active))
	}

	active[index].Active = false
	return *active[index], nil
}

// ClearAll deactivates every active warning for a user and returns the
// number removed.
func (l *WarningLedger) ClearAll(groupID, userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userKey{GroupID: groupID, UserID: userID}
	removed := 0
	for _, w := range l.byUser[key] {
		if w.Active {
			w.Active = false
			removed++
		}
	}
	return removed
}

// ListActive returns the user's active warnings in issuance order.
func (l *WarningLedger) ListActive(groupID, userID int64) []Warning {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.activeLocked(userKey{GroupID: groupID, UserID: userID})
	out := make([]Warning, len(active))
	for i, w := range active {
		out[i] = *w
	}
	return out
}

func (l *WarningLedger) ActiveCount(groupID, userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeCountLocked(userKey{GroupID: groupID, UserID: userID})
}

func (l *WarningLedger) activeLocked(key userKey) []*Warning {
	var active []*Warning
	for _, w := range l.byUser[key] {
		if w.Active {
			active = append(active, w)
		}
	}
	return active
}

func (l *WarningLedger) activeCountLocked(key userKey) int {
	count := 0
	for _, w := range l.byUser[key] {
		if w.Active {
			count++
		}
	}
	return count
}
