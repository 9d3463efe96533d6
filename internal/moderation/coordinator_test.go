package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/logger"
	"warden/pkg/clock"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

// stubConfigProvider serves fixed snapshots per group. Groups without
// an entry report CONFIG_MISSING like the real snapshot cache does.
type stubConfigProvider struct {
	mu      sync.Mutex
	configs map[int64]*GroupConfig
	err     error
}

func newStubConfigProvider(configs ...*GroupConfig) *stubConfigProvider {
	p := &stubConfigProvider{configs: make(map[int64]*GroupConfig)}
	for _, cfg := range configs {
		p.configs[cfg.GroupID] = cfg
	}
	return p
}

func (p *stubConfigProvider) Snapshot(_ context.Context, groupID int64) (*GroupConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	cfg, ok := p.configs[groupID]
	if !ok {
		return nil, pkgerrors.ErrConfigMissing.WithDetail("group_id", groupID)
	}
	return cfg, nil
}

func messageEvent(groupID, userID int64, text string) *models.ChatEvent {
	return models.NewChatEventBuilder().
		WithID("evt-1").
		WithGroup(groupID).
		WithSender(userID).
		WithMessage("msg-1", text).
		Build()
}

func newTestCoordinator(t *testing.T, provider ConfigProvider, opts ...CoordinatorOption) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(provider, logger.NopLogger(), opts...)
	require.NoError(t, err)
	return coordinator
}

func TestCoordinatorLinkFilter(t *testing.T) {
	cfg := &GroupConfig{
		GroupID:    1,
		LinkFilter: &FilterRule{Enabled: true, Action: models.ActionDelete},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg))

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "buy now http://spam.example"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionDelete, actions[0].Kind)
	assert.Equal(t, string(RuleLink), actions[0].Rule)
	assert.Equal(t, "msg-1", actions[0].MessageID)

	actions, err = coordinator.OnMessage(context.Background(), messageEvent(1, 10, "no links here"))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

// A message matching several rule families yields exactly one sanction,
// from the highest-priority family.
func TestCoordinatorSingleSanctionPerMessage(t *testing.T) {
	cfg := &GroupConfig{
		GroupID:    1,
		LinkFilter: &FilterRule{Enabled: true, Action: models.ActionDelete},
		Keywords: []KeywordRule{
			{Keyword: "casino", Action: models.ActionBan},
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg))

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "casino at http://spam.example"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, string(RuleLink), actions[0].Rule)
	assert.Equal(t, models.ActionDelete, actions[0].Kind)

	// Without the link the keyword rule takes over.
	actions, err = coordinator.OnMessage(context.Background(), messageEvent(1, 10, "best casino in town"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, string(RuleKeyword), actions[0].Rule)
	assert.Equal(t, models.ActionBan, actions[0].Kind)
}

func TestCoordinatorPrivilegedSenderSkipped(t *testing.T) {
	cfg := &GroupConfig{
		GroupID:    1,
		LinkFilter: &FilterRule{Enabled: true, Action: models.ActionDelete},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg))

	evt := messageEvent(1, 10, "pinned: http://rules.example")
	evt.IsPrivileged = true

	actions, err := coordinator.OnMessage(context.Background(), evt)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCoordinatorMissingConfigDisablesRules(t *testing.T) {
	coordinator := newTestCoordinator(t, newStubConfigProvider())

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(77, 10, "@everyone http://spam.example"))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCoordinatorConfigProviderFailure(t *testing.T) {
	provider := newStubConfigProvider()
	provider.err = pkgerrors.ErrServiceUnavailable
	coordinator := newTestCoordinator(t, provider)

	_, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hello"))
	require.Error(t, err)
}

func TestCoordinatorValidation(t *testing.T) {
	coordinator := newTestCoordinator(t, newStubConfigProvider())

	_, err := coordinator.OnMessage(context.Background(), nil)
	require.Error(t, err)

	evt := messageEvent(1, 10, "hello")
	evt.GroupID = 0
	_, err = coordinator.OnMessage(context.Background(), evt)
	require.Error(t, err)
}

func TestCoordinatorSpamWindow(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := &GroupConfig{
		GroupID: 1,
		SpamRate: &RateRule{
			Enabled:      true,
			Action:       models.ActionMute,
			Limit:        5,
			Window:       10 * time.Second,
			MuteDuration: time.Hour,
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg), WithClock(fake))

	for i := 0; i < 4; i++ {
		actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hi"))
		require.NoError(t, err)
		assert.Empty(t, actions)
		fake.Advance(500 * time.Millisecond)
	}

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hi"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionMute, actions[0].Kind)
	assert.Equal(t, string(RuleSpam), actions[0].Rule)
	assert.Equal(t, int64(3600), actions[0].DurationSeconds)
	assert.True(t, coordinator.Mutes().IsActive(1, 10, RestrictionMute, fake.Now()))

	// The sanction reset the window, so the next message is judged
	// fresh.
	actions, err = coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hi again"))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCoordinatorWarnFeedsEscalation(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := &GroupConfig{
		GroupID:    1,
		LinkFilter: &FilterRule{Enabled: true, Action: models.ActionWarn},
		Escalation: EscalationPolicy{
			MuteThreshold: 2,
			KickThreshold: 4,
			MuteDuration:  time.Hour,
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg), WithClock(fake))

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "http://a.example"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionWarn, actions[0].Kind)
	assert.Equal(t, 1, coordinator.Ledger().ActiveCount(1, 10))

	// The second warning crosses the mute threshold, so the warn
	// action is followed by the escalation mute.
	actions, err = coordinator.OnMessage(context.Background(), messageEvent(1, 10, "http://b.example"))
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionWarn, actions[0].Kind)
	assert.Equal(t, models.ActionMute, actions[1].Kind)
	assert.Equal(t, string(RuleEscalation), actions[1].Rule)
	assert.True(t, coordinator.Mutes().IsActive(1, 10, RestrictionMute, fake.Now()))
}

func TestCoordinatorCustomRuleErrorTolerated(t *testing.T) {
	cfg := &GroupConfig{
		GroupID: 1,
		CustomRules: []CustomRule{
			{ID: "r1", Name: "broken", Expression: "text.unknownMethod()", Enabled: true, Action: models.ActionDelete},
			{ID: "r2", Name: "long text", Expression: "text.size() > 10", Enabled: true, Action: models.ActionNotify},
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg))

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "a message long enough to match"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionNotify, actions[0].Kind)
	assert.Equal(t, string(RuleCustom), actions[0].Rule)
}

func TestCoordinatorMemberJoinNewAccountCheck(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := &GroupConfig{
		GroupID: 1,
		NewAccount: &NewAccountRule{
			Enabled:    true,
			Action:     models.ActionKick,
			MinAgeDays: 7,
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg), WithClock(fake))

	fresh := fake.Now().Add(-24 * time.Hour)
	aged := fake.Now().Add(-30 * 24 * time.Hour)
	evt := &models.ChatEvent{
		ID:      "evt-join",
		Type:    models.EventTypeMemberJoin,
		GroupID: 1,
		NewMembers: []models.Member{
			{UserID: 20, AccountCreatedAt: &fresh},
			{UserID: 21, AccountCreatedAt: &aged},
			{UserID: 22},
		},
		Timestamp: fake.Now(),
	}

	actions, err := coordinator.OnMemberJoin(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionKick, actions[0].Kind)
	assert.Equal(t, int64(20), actions[0].UserID)
	assert.Equal(t, string(RuleNewAccount), actions[0].Rule)
}

func TestCoordinatorExpiryEmitsLiftAction(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var lifted []models.Action
	record := func(action models.Action) {
		mu.Lock()
		defer mu.Unlock()
		lifted = append(lifted, action)
	}

	cfg := &GroupConfig{
		GroupID: 1,
		SpamRate: &RateRule{
			Enabled:      true,
			Action:       models.ActionMute,
			Limit:        1,
			Window:       time.Second,
			MuteDuration: 10 * time.Minute,
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg),
		WithClock(fake),
		WithExpiryHandler(record),
	)

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hi"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, models.ActionMute, actions[0].Kind)

	fake.Advance(10 * time.Minute)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lifted, 1)
	assert.Equal(t, models.ActionUnmute, lifted[0].Kind)
	assert.Equal(t, int64(1), lifted[0].GroupID)
	assert.Equal(t, int64(10), lifted[0].UserID)
}

func TestCoordinatorRollbackAction(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := &GroupConfig{
		GroupID: 1,
		SpamRate: &RateRule{
			Enabled:      true,
			Action:       models.ActionMute,
			Limit:        1,
			Window:       time.Second,
			MuteDuration: 10 * time.Minute,
		},
	}
	coordinator := newTestCoordinator(t, newStubConfigProvider(cfg), WithClock(fake))

	actions, err := coordinator.OnMessage(context.Background(), messageEvent(1, 10, "hi"))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.True(t, coordinator.Mutes().IsActive(1, 10, RestrictionMute, fake.Now()))

	coordinator.RollbackAction(actions[0])
	assert.False(t, coordinator.Mutes().IsActive(1, 10, RestrictionMute, fake.Now()))
}
