package groups

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/moderation"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

func patchedConfig() *moderation.GroupConfig {
	return &moderation.GroupConfig{
		GroupID:    42,
		LinkFilter: &moderation.FilterRule{Enabled: true, Action: models.ActionDelete},
		SpamRate:   &moderation.RateRule{Enabled: true, Action: models.ActionMute, Limit: 5, Window: 10 * time.Second},
	}
}

func TestApplyRuleFamilyPatchReplacesOneFamily(t *testing.T) {
	cfg := patchedConfig()

	payload := json.RawMessage(`{"enabled": true, "action": "mute", "limit": 8, "window_seconds": 20}`)
	require.NoError(t, applyRuleFamilyPatch(cfg, FamilySpamRate, payload))

	require.NotNil(t, cfg.SpamRate)
	assert.Equal(t, 8, cfg.SpamRate.Limit)
	assert.Equal(t, 20*time.Second, cfg.SpamRate.Window)

	// Untouched families survive the patch.
	require.NotNil(t, cfg.LinkFilter)
	assert.Equal(t, models.ActionDelete, cfg.LinkFilter.Action)
}

func TestApplyRuleFamilyPatchNullClearsFamily(t *testing.T) {
	cfg := patchedConfig()

	require.NoError(t, applyRuleFamilyPatch(cfg, FamilyLinkFilter, json.RawMessage(`null`)))
	assert.Nil(t, cfg.LinkFilter)
	assert.NotNil(t, cfg.SpamRate)

	cfg.Escalation = moderation.EscalationPolicy{MuteThreshold: 2, KickThreshold: 4}
	require.NoError(t, applyRuleFamilyPatch(cfg, FamilyEscalation, nil))
	assert.Equal(t, moderation.EscalationPolicy{}, cfg.Escalation)
}

func TestApplyRuleFamilyPatchRejectsUnknownFamily(t *testing.T) {
	cfg := patchedConfig()

	err := applyRuleFamilyPatch(cfg, "vibe_filter", json.RawMessage(`{"enabled": true}`))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnknownRuleKind(err))
}

func TestApplyRuleFamilyPatchValidatesPayload(t *testing.T) {
	cfg := patchedConfig()

	err := applyRuleFamilyPatch(cfg, FamilySpamRate, json.RawMessage(`{"enabled": true, "action": "mute", "limit": 0, "window_seconds": 20}`))
	require.Error(t, err)
	// A rejected payload leaves the existing family in place.
	require.NotNil(t, cfg.SpamRate)
	assert.Equal(t, 5, cfg.SpamRate.Limit)
}
