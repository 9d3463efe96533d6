package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/models"
)

func validUpsertRequest() UpsertConfigRequest {
	return UpsertConfigRequest{
		LinkFilter: &FilterRuleRequest{Enabled: true, Action: "delete"},
		BadWordFilter: &BadWordRuleRequest{
			Enabled: true,
			Action:  "warn",
			Words:   []string{"casino"},
		},
		SpamRate: &RateRuleRequest{
			Enabled:             true,
			Action:              "mute",
			Limit:               5,
			WindowSeconds:       10,
			MuteDurationSeconds: 600,
		},
		NewAccount: &NewAccountRuleRequest{Enabled: true, Action: "kick", MinAgeDays: 7},
		CustomRules: []CustomRuleRequest{
			{Name: "long_message", Expression: "text.size() > 2000", Action: "delete"},
		},
		Escalation: &EscalationRequest{
			MuteThreshold:       3,
			KickThreshold:       5,
			MuteDurationSeconds: 3600,
		},
	}
}

func TestValidateUpsertConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*UpsertConfigRequest)
		wantErr string
	}{
		{
			name:   "valid full config",
			mutate: func(r *UpsertConfigRequest) {},
		},
		{
			name:   "empty config disables everything",
			mutate: func(r *UpsertConfigRequest) { *r = UpsertConfigRequest{} },
		},
		{
			name:    "unknown filter action",
			mutate:  func(r *UpsertConfigRequest) { r.LinkFilter.Action = "explode" },
			wantErr: "invalid link_filter.action",
		},
		{
			name:    "lift action rejected",
			mutate:  func(r *UpsertConfigRequest) { r.LinkFilter.Action = "unmute" },
			wantErr: "invalid link_filter.action",
		},
		{
			name:    "enabled bad word filter needs words",
			mutate:  func(r *UpsertConfigRequest) { r.BadWordFilter.Words = nil },
			wantErr: "bad_word_filter.words cannot be empty",
		},
		{
			name:    "rate rule needs positive limit",
			mutate:  func(r *UpsertConfigRequest) { r.SpamRate.Limit = 0 },
			wantErr: "spam_rate.limit must be positive",
		},
		{
			name:    "rate rule needs positive window",
			mutate:  func(r *UpsertConfigRequest) { r.SpamRate.WindowSeconds = -1 },
			wantErr: "spam_rate.window_seconds must be positive",
		},
		{
			name:    "new account rule needs positive age",
			mutate:  func(r *UpsertConfigRequest) { r.NewAccount.MinAgeDays = 0 },
			wantErr: "new_account.min_age_days must be positive",
		},
		{
			name:    "custom rule needs a name",
			mutate:  func(r *UpsertConfigRequest) { r.CustomRules[0].Name = "" },
			wantErr: "custom_rules[0].name is required",
		},
		{
			name:    "custom rule expression must compile",
			mutate:  func(r *UpsertConfigRequest) { r.CustomRules[0].Expression = "text.unknownMethod(" },
			wantErr: "invalid CEL expression in custom_rules[0]",
		},
		{
			name:    "custom rule expression must be boolean",
			mutate:  func(r *UpsertConfigRequest) { r.CustomRules[0].Expression = "text.size()" },
			wantErr: "invalid CEL expression in custom_rules[0]",
		},
		{
			name:    "escalation mute threshold must be positive",
			mutate:  func(r *UpsertConfigRequest) { r.Escalation.MuteThreshold = 0 },
			wantErr: "escalation.mute_threshold must be positive",
		},
		{
			name: "escalation kick threshold must exceed mute threshold",
			mutate: func(r *UpsertConfigRequest) {
				r.Escalation.MuteThreshold = 5
				r.Escalation.KickThreshold = 5
			},
			wantErr: "escalation.kick_threshold must be greater",
		},
		{
			name:    "escalation auto action limited to kick or ban",
			mutate:  func(r *UpsertConfigRequest) { r.Escalation.AutoAction = "warn" },
			wantErr: "invalid escalation.auto_action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validUpsertRequest()
			tt.mutate(&req)

			err := ValidateUpsertConfig(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAddKeyword(t *testing.T) {
	tests := []struct {
		name    string
		req     AddKeywordRequest
		wantErr bool
	}{
		{name: "valid", req: AddKeywordRequest{Keyword: "casino", Action: "delete"}},
		{name: "keyword trimmed to empty", req: AddKeywordRequest{Keyword: "   ", Action: "delete"}, wantErr: true},
		{name: "unknown action", req: AddKeywordRequest{Keyword: "casino", Action: "shame"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddKeyword(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpsertRequestConversionDefaults(t *testing.T) {
	req := UpsertConfigRequest{
		SpamRate: &RateRuleRequest{
			Enabled:       true,
			Action:        "mute",
			Limit:         5,
			WindowSeconds: 10,
		},
		CustomRules: []CustomRuleRequest{
			{Name: "r1", Expression: "text.size() > 10", Action: "notify"},
		},
		Escalation: &EscalationRequest{
			MuteThreshold:       2,
			KickThreshold:       4,
			MuteDurationSeconds: 600,
		},
	}

	cfg := req.toGroupConfig(42)

	assert.EqualValues(t, 42, cfg.GroupID)
	assert.Nil(t, cfg.LinkFilter)
	require.NotNil(t, cfg.SpamRate)
	assert.EqualValues(t, 10, cfg.SpamRate.Window.Seconds())
	require.Len(t, cfg.CustomRules, 1)
	assert.True(t, cfg.CustomRules[0].Enabled, "enabled defaults to true when omitted")
	assert.Equal(t, models.ActionKick, cfg.Escalation.AutoAction, "auto action defaults to kick")
	assert.EqualValues(t, 600, cfg.Escalation.MuteDuration.Seconds())
}
