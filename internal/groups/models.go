package groups

import (
	"time"

	"warden/internal/moderation"
	"warden/pkg/models"
)

// UpsertConfigRequest replaces a group's rule configuration. A nil
// rule family disables the family.
type UpsertConfigRequest struct {
	LinkFilter    *FilterRuleRequest     `json:"link_filter"`
	MentionFilter *FilterRuleRequest     `json:"mention_filter"`
	BadWordFilter *BadWordRuleRequest    `json:"bad_word_filter"`
	SpamRate      *RateRuleRequest       `json:"spam_rate"`
	FloodRate     *RateRuleRequest       `json:"flood_rate"`
	NewAccount    *NewAccountRuleRequest `json:"new_account"`
	CustomRules   []CustomRuleRequest    `json:"custom_rules"`
	Escalation    *EscalationRequest     `json:"escalation"`
}

type FilterRuleRequest struct {
	Enabled             bool   `json:"enabled"`
	Action              string `json:"action" binding:"required"`
	MuteDurationSeconds int64  `json:"mute_duration_seconds"`
}

type BadWordRuleRequest struct {
	Enabled             bool     `json:"enabled"`
	Action              string   `json:"action" binding:"required"`
	MuteDurationSeconds int64    `json:"mute_duration_seconds"`
	Words               []string `json:"words" binding:"required"`
}

type RateRuleRequest struct {
	Enabled             bool   `json:"enabled"`
	Action              string `json:"action" binding:"required"`
	Limit               int    `json:"limit" binding:"required"`
	WindowSeconds       int64  `json:"window_seconds" binding:"required"`
	MuteDurationSeconds int64  `json:"mute_duration_seconds"`
}

type NewAccountRuleRequest struct {
	Enabled    bool   `json:"enabled"`
	Action     string `json:"action" binding:"required"`
	MinAgeDays int    `json:"min_age_days" binding:"required"`
}

type CustomRuleRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" binding:"required"`
	Expression string `json:"expression" binding:"required"`
	Action     string `json:"action" binding:"required"`
	Enabled    *bool  `json:"enabled"`
}

type EscalationRequest struct {
	MuteThreshold       int    `json:"mute_threshold" binding:"required"`
	KickThreshold       int    `json:"kick_threshold" binding:"required"`
	MuteDurationSeconds int64  `json:"mute_duration_seconds"`
	AutoAction          string `json:"auto_action"`
}

type AddKeywordRequest struct {
	Keyword string `json:"keyword" binding:"required"`
	Action  string `json:"action" binding:"required"`
	AddedBy int64  `json:"added_by"`
}

func (r UpsertConfigRequest) toGroupConfig(groupID int64) *moderation.GroupConfig {
	cfg := &moderation.GroupConfig{GroupID: groupID}

	if r.LinkFilter != nil {
		cfg.LinkFilter = r.LinkFilter.toFilterRule()
	}
	if r.MentionFilter != nil {
		cfg.MentionFilter = r.MentionFilter.toFilterRule()
	}
	if r.BadWordFilter != nil {
		cfg.BadWordFilter = &moderation.BadWordRule{
			Enabled:      r.BadWordFilter.Enabled,
			Action:       models.ActionKind(r.BadWordFilter.Action),
			MuteDuration: time.Duration(r.BadWordFilter.MuteDurationSeconds) * time.Second,
			Words:        r.BadWordFilter.Words,
		}
	}
	if r.SpamRate != nil {
		cfg.SpamRate = r.SpamRate.toRateRule()
	}
	if r.FloodRate != nil {
		cfg.FloodRate = r.FloodRate.toRateRule()
	}
	if r.NewAccount != nil {
		cfg.NewAccount = &moderation.NewAccountRule{
			Enabled:    r.NewAccount.Enabled,
			Action:     models.ActionKind(r.NewAccount.Action),
			MinAgeDays: r.NewAccount.MinAgeDays,
		}
	}
	for _, cr := range r.CustomRules {
		enabled := true
		if cr.Enabled != nil {
			enabled = *cr.Enabled
		}
		cfg.CustomRules = append(cfg.CustomRules, moderation.CustomRule{
			ID:         cr.ID,
			Name:       cr.Name,
			Expression: cr.Expression,
			Action:     models.ActionKind(cr.Action),
			Enabled:    enabled,
		})
	}
	if r.Escalation != nil {
		autoAction := models.ActionKind(r.Escalation.AutoAction)
		if r.Escalation.AutoAction == "" {
			autoAction = models.ActionKick
		}
		cfg.Escalation = moderation.EscalationPolicy{
			MuteThreshold: r.Escalation.MuteThreshold,
			KickThreshold: r.Escalation.KickThreshold,
			MuteDuration:  time.Duration(r.Escalation.MuteDurationSeconds) * time.Second,
			AutoAction:    autoAction,
		}
	}

	return cfg
}

func (r FilterRuleRequest) toFilterRule() *moderation.FilterRule {
	return &moderation.FilterRule{
		Enabled:      r.Enabled,
		Action:       models.ActionKind(r.Action),
		MuteDuration: time.Duration(r.MuteDurationSeconds) * time.Second,
	}
}

func (r RateRuleRequest) toRateRule() *moderation.RateRule {
	return &moderation.RateRule{
		Enabled:      r.Enabled,
		Action:       models.ActionKind(r.Action),
		Limit:        r.Limit,
		Window:       time.Duration(r.WindowSeconds) * time.Second,
		MuteDuration: time.Duration(r.MuteDurationSeconds) * time.Second,
	}
}
