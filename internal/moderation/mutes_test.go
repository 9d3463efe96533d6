package moderation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/clock"
)

type expiryRecorder struct {
	mu      sync.Mutex
	expired []restrictionKey
}

func (r *expiryRecorder) record(groupID, userID int64, kind RestrictionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, restrictionKey{GroupID: groupID, UserID: userID, Kind: kind})
}

func (r *expiryRecorder) all() []restrictionKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]restrictionKey(nil), r.expired...)
}

func TestMuteSchedulerTimedExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	recorder := &expiryRecorder{}
	scheduler := NewMuteScheduler(fake, recorder.record)

	restriction := scheduler.ScheduleMute(1, 10, 10*time.Minute, "spam limit exceeded")
	require.NotNil(t, restriction.ExpiresAt)
	assert.Equal(t, start.Add(10*time.Minute), *restriction.ExpiresAt)
	assert.True(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))

	fake.Advance(9 * time.Minute)
	assert.True(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))
	assert.Empty(t, recorder.all())

	fake.Advance(time.Minute)
	assert.False(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))
	assert.Equal(t, 0, scheduler.ActiveCount())

	expired := recorder.all()
	require.Len(t, expired, 1)
	assert.Equal(t, restrictionKey{GroupID: 1, UserID: 10, Kind: RestrictionMute}, expired[0])
}

func TestMuteSchedulerReplaceNotStack(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	recorder := &expiryRecorder{}
	scheduler := NewMuteScheduler(fake, recorder.record)

	scheduler.ScheduleMute(1, 10, 5*time.Minute, "first")
	second := scheduler.ScheduleMute(1, 10, 30*time.Minute, "second")

	assert.Equal(t, 1, scheduler.ActiveCount())
	active, ok := scheduler.Active(1, 10, RestrictionMute, fake.Now())
	require.True(t, ok)
	assert.Equal(t, "second", active.Reason)
	require.NotNil(t, second.ExpiresAt)
	assert.Equal(t, start.Add(30*time.Minute), *second.ExpiresAt)

	// The first timer was stopped, so nothing expires at its deadline.
	fake.Advance(5 * time.Minute)
	assert.Empty(t, recorder.all())
	assert.True(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))

	fake.Advance(25 * time.Minute)
	assert.Len(t, recorder.all(), 1)
	assert.False(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))
}

func TestMuteSchedulerPermanent(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	recorder := &expiryRecorder{}
	scheduler := NewMuteScheduler(fake, recorder.record)

	restriction := scheduler.ScheduleBan(1, 10, 0, "escalation")
	assert.Nil(t, restriction.ExpiresAt)
	assert.Equal(t, 0, fake.PendingTimers())

	fake.Advance(365 * 24 * time.Hour)
	assert.True(t, scheduler.IsActive(1, 10, RestrictionBan, fake.Now()))
	assert.Empty(t, recorder.all())
}

func TestMuteSchedulerCancel(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	recorder := &expiryRecorder{}
	scheduler := NewMuteScheduler(fake, recorder.record)

	scheduler.ScheduleMute(1, 10, 10*time.Minute, "spam")

	assert.True(t, scheduler.Cancel(1, 10, RestrictionMute))
	assert.False(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))

	// Cancel does not signal expiry and the timer is gone.
	fake.Advance(time.Hour)
	assert.Empty(t, recorder.all())

	assert.False(t, scheduler.Cancel(1, 10, RestrictionMute))
	assert.False(t, scheduler.Cancel(1, 10, RestrictionBan))
}

func TestMuteSchedulerKindsAreIndependent(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	scheduler := NewMuteScheduler(fake, nil)

	scheduler.ScheduleMute(1, 10, 10*time.Minute, "mute")
	scheduler.ScheduleBan(1, 10, 0, "ban")

	assert.Equal(t, 2, scheduler.ActiveCount())
	assert.True(t, scheduler.IsActive(1, 10, RestrictionMute, fake.Now()))
	assert.True(t, scheduler.IsActive(1, 10, RestrictionBan, fake.Now()))

	scheduler.Cancel(1, 10, RestrictionMute)
	assert.True(t, scheduler.IsActive(1, 10, RestrictionBan, fake.Now()))
}
