package moderation

import (
	"sync"
	"time"

	"warden/pkg/clock"
)

type restrictionKey struct {
	GroupID int64
	UserID  int64
	Kind    RestrictionKind
}

type activeRestriction struct {
	restriction Restriction
	timer       clock.Timer
}

// ExpiryFunc is invoked when a scheduled restriction expires, so the
// caller can ask the transport layer to lift the platform-level
// restriction.
type ExpiryFunc func(groupID, userID int64, kind RestrictionKind)

// MuteScheduler tracks active timed restrictions and their one-shot
// expiry timers. At most one active restriction of a given kind per
// (group, user): scheduling again replaces the prior restriction and
// its timer. State is process-local; the transport remains the source
// of truth for actually-enforced restrictions.
type MuteScheduler struct {
	mu       sync.Mutex
	clk      clock.Clock
	active   map[restrictionKey]*activeRestriction
	onExpire ExpiryFunc
}

func NewMuteScheduler(clk clock.Clock, onExpire ExpiryFunc) *MuteScheduler {
	return &MuteScheduler{
		clk:      clk,
		active:   make(map[restrictionKey]*activeRestriction),
		onExpire: onExpire,
	}
}

// ScheduleMute arms a timed mute. A non-positive duration produces a
// permanent restriction with no timer.
func (s *MuteScheduler) ScheduleMute(groupID, userID int64, duration time.Duration, reason string) Restriction {
	return s.schedule(groupID, userID, RestrictionMute, duration, reason)
}

func (s *MuteScheduler) ScheduleBan(groupID, userID int64, duration time.Duration, reason string) Restriction {
	return s.schedule(groupID, userID, RestrictionBan, duration, reason)
}

func (s *MuteScheduler) schedule(groupID, userID int64, kind RestrictionKind, duration time.Duration, reason string) Restriction {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := restrictionKey{GroupID: groupID, UserID: userID, Kind: kind}

	// Replace, never stack: the old timer must be dead before the new
	// one is armed.
	if prior, ok := s.active[key]; ok && prior.timer != nil {
		prior.timer.Stop()
	}

	now := s.clk.Now()
	restriction := Restriction{
		GroupID:  groupID,
		UserID:   userID,
		Kind:     kind,
		Reason:   reason,
		IssuedAt: now,
	}

	entry := &activeRestriction{restriction: restriction}
	if duration > 0 {
		expiresAt := now.Add(duration)
		entry.restriction.ExpiresAt = &expiresAt
		entry.timer = s.clk.AfterFunc(duration, func() {
			s.expire(key, entry)
		})
	}
	s.active[key] = entry

	return entry.restriction
}

// Cancel lifts a restriction without signalling expiry. Reports
// whether a restriction was active.
func (s *MuteScheduler) Cancel(groupID, userID int64, kind RestrictionKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := restrictionKey{GroupID: groupID, UserID: userID, Kind: kind}
	entry, ok := s.active[key]
	if !ok {
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(s.active, key)
	return true
}

func (s *MuteScheduler) IsActive(groupID, userID int64, kind RestrictionKind, now time.Time) bool {
	_, ok := s.Active(groupID, userID, kind, now)
	return ok
}

func (s *MuteScheduler) Active(groupID, userID int64, kind RestrictionKind, now time.Time) (Restriction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.active[restrictionKey{GroupID: groupID, UserID: userID, Kind: kind}]
	if !ok {
		return Restriction{}, false
	}
	if entry.restriction.ExpiresAt != nil && !entry.restriction.ExpiresAt.After(now) {
		return Restriction{}, false
	}
	return entry.restriction, true
}

// ActiveCount reports the number of tracked restrictions, for gauge
// metrics.
func (s *MuteScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Stop disarms all pending timers without signalling expiry. Used on
// shutdown; tracked restrictions stay in place.
func (s *MuteScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.active {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
}

func (s *MuteScheduler) expire(key restrictionKey, entry *activeRestriction) {
	s.mu.Lock()
	current, ok := s.active[key]
	if !ok || current != entry {
		// A replacement raced the old timer's callback; the newer
		// restriction owns the key now.
		s.mu.Unlock()
		return
	}
	delete(s.active, key)
	onExpire := s.onExpire
	s.mu.Unlock()

	if onExpire != nil {
		onExpire(key.GroupID, key.UserID, key.Kind)
	}
}
