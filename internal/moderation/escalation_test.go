package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/clock"
	"warden/pkg/models"
)

func newEscalationFixture(t *testing.T) (*EscalationEngine, *WarningLedger, *MuteScheduler, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := NewWarningLedger()
	mutes := NewMuteScheduler(fake, nil)
	return NewEscalationEngine(ledger, mutes), ledger, mutes, fake
}

// Drives a user through the full warning cycle: the third warning
// crosses the mute threshold, the fifth crosses the kick threshold and
// clears the ledger for a fresh cycle.
func TestEscalationFullCycle(t *testing.T) {
	engine, ledger, mutes, fake := newEscalationFixture(t)
	policy := EscalationPolicy{
		MuteThreshold: 3,
		KickThreshold: 5,
		MuteDuration:  time.Hour,
		AutoAction:    models.ActionKick,
	}

	warn := func(reason string) []models.Action {
		_, newCount := ledger.AddWarning(1, 10, reason, 0, fake.Now())
		return engine.OnWarning(1, 10, newCount-1, newCount, policy, fake.Now())
	}

	assert.Empty(t, warn("r1"))
	assert.Empty(t, warn("r2"))

	muteActions := warn("r3")
	require.Len(t, muteActions, 1)
	assert.Equal(t, models.ActionMute, muteActions[0].Kind)
	assert.Equal(t, string(RuleEscalation), muteActions[0].Rule)
	assert.Equal(t, int64(3600), muteActions[0].DurationSeconds)
	assert.True(t, mutes.IsActive(1, 10, RestrictionMute, fake.Now()))

	assert.Empty(t, warn("r4"))

	kickActions := warn("r5")
	require.Len(t, kickActions, 1)
	assert.Equal(t, models.ActionKick, kickActions[0].Kind)
	assert.Empty(t, ledger.ListActive(1, 10))

	// The next warning starts a new cycle at count 1.
	assert.Empty(t, warn("r6"))
	assert.Equal(t, 1, ledger.ActiveCount(1, 10))
}

func TestEscalationMuteTierFiresOnlyOnCrossing(t *testing.T) {
	engine, _, _, fake := newEscalationFixture(t)
	policy := EscalationPolicy{MuteThreshold: 3, KickThreshold: 5, MuteDuration: time.Hour}

	// Already at or above the threshold before the warning: no crossing,
	// no action.
	assert.Empty(t, engine.OnWarning(1, 10, 3, 4, policy, fake.Now()))

	// Crossing from below fires even if the count jumps past the
	// threshold.
	actions := engine.OnWarning(1, 11, 2, 4, policy, fake.Now())
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionMute, actions[0].Kind)
}

func TestEscalationKickTierSuppressesMuteTier(t *testing.T) {
	engine, ledger, _, fake := newEscalationFixture(t)
	policy := EscalationPolicy{MuteThreshold: 3, KickThreshold: 5, MuteDuration: time.Hour}

	ledger.AddWarning(1, 10, "a", 0, fake.Now())

	// A jump crossing both thresholds emits only the kick.
	actions := engine.OnWarning(1, 10, 1, 5, policy, fake.Now())
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionKick, actions[0].Kind)
	assert.Empty(t, ledger.ListActive(1, 10))
}

func TestEscalationBanAutoAction(t *testing.T) {
	engine, _, mutes, fake := newEscalationFixture(t)
	policy := EscalationPolicy{
		MuteThreshold: 2,
		KickThreshold: 3,
		MuteDuration:  time.Hour,
		AutoAction:    models.ActionBan,
	}

	actions := engine.OnWarning(1, 10, 2, 3, policy, fake.Now())
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionBan, actions[0].Kind)

	// The ban is recorded locally as permanent.
	active, ok := mutes.Active(1, 10, RestrictionBan, fake.Now())
	require.True(t, ok)
	assert.Nil(t, active.ExpiresAt)
}

func TestEscalationInvalidPolicyDisabled(t *testing.T) {
	engine, _, _, fake := newEscalationFixture(t)

	tests := []struct {
		name   string
		policy EscalationPolicy
	}{
		{name: "zero policy", policy: EscalationPolicy{}},
		{name: "thresholds inverted", policy: EscalationPolicy{MuteThreshold: 5, KickThreshold: 3}},
		{name: "thresholds equal", policy: EscalationPolicy{MuteThreshold: 3, KickThreshold: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, engine.OnWarning(1, 10, 2, 3, tt.policy, fake.Now()))
		})
	}
}

func TestEscalationRollback(t *testing.T) {
	engine, _, mutes, fake := newEscalationFixture(t)
	policy := EscalationPolicy{MuteThreshold: 2, KickThreshold: 4, MuteDuration: time.Hour}

	actions := engine.OnWarning(1, 10, 1, 2, policy, fake.Now())
	require.Len(t, actions, 1)
	require.True(t, mutes.IsActive(1, 10, RestrictionMute, fake.Now()))

	engine.Rollback(actions[0])
	assert.False(t, mutes.IsActive(1, 10, RestrictionMute, fake.Now()))

	// Rolling back a non-restricting action is a no-op.
	engine.Rollback(models.Action{Kind: models.ActionWarn, GroupID: 1, UserID: 10})
}
