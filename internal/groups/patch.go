package groups

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"warden/internal/moderation"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

// Rule family names accepted by the single-family update endpoint.
const (
	FamilyLinkFilter    = "link_filter"
	FamilyMentionFilter = "mention_filter"
	FamilyBadWordFilter = "bad_word_filter"
	FamilySpamRate      = "spam_rate"
	FamilyFloodRate     = "flood_rate"
	FamilyNewAccount    = "new_account"
	FamilyCustomRules   = "custom_rules"
	FamilyEscalation    = "escalation"
)

// applyRuleFamilyPatch validates raw and writes the named family into
// cfg, leaving the other families untouched. A JSON null (or empty
// body) clears the family.
func applyRuleFamilyPatch(cfg *moderation.GroupConfig, family string, raw json.RawMessage) error {
	clearFamily := len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	switch family {
	case FamilyLinkFilter:
		if clearFamily {
			cfg.LinkFilter = nil
			return nil
		}
		var req FilterRuleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateRuleAction(family, req.Action); err != nil {
			return err
		}
		cfg.LinkFilter = req.toFilterRule()

	case FamilyMentionFilter:
		if clearFamily {
			cfg.MentionFilter = nil
			return nil
		}
		var req FilterRuleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateRuleAction(family, req.Action); err != nil {
			return err
		}
		cfg.MentionFilter = req.toFilterRule()

	case FamilyBadWordFilter:
		if clearFamily {
			cfg.BadWordFilter = nil
			return nil
		}
		var req BadWordRuleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateBadWordRule(&req); err != nil {
			return err
		}
		cfg.BadWordFilter = &moderation.BadWordRule{
			Enabled:      req.Enabled,
			Action:       models.ActionKind(req.Action),
			MuteDuration: time.Duration(req.MuteDurationSeconds) * time.Second,
			Words:        req.Words,
		}

	case FamilySpamRate, FamilyFloodRate:
		if clearFamily {
			if family == FamilySpamRate {
				cfg.SpamRate = nil
			} else {
				cfg.FloodRate = nil
			}
			return nil
		}
		var req RateRuleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateRateRule(family, &req); err != nil {
			return err
		}
		if family == FamilySpamRate {
			cfg.SpamRate = req.toRateRule()
		} else {
			cfg.FloodRate = req.toRateRule()
		}

	case FamilyNewAccount:
		if clearFamily {
			cfg.NewAccount = nil
			return nil
		}
		var req NewAccountRuleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateNewAccountRule(&req); err != nil {
			return err
		}
		cfg.NewAccount = &moderation.NewAccountRule{
			Enabled:    req.Enabled,
			Action:     models.ActionKind(req.Action),
			MinAgeDays: req.MinAgeDays,
		}

	case FamilyCustomRules:
		if clearFamily {
			cfg.CustomRules = nil
			return nil
		}
		var reqs []CustomRuleRequest
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateCustomRules(reqs); err != nil {
			return err
		}
		rules := make([]moderation.CustomRule, 0, len(reqs))
		for _, req := range reqs {
			enabled := true
			if req.Enabled != nil {
				enabled = *req.Enabled
			}
			rules = append(rules, moderation.CustomRule{
				ID:         req.ID,
				Name:       req.Name,
				Expression: req.Expression,
				Action:     models.ActionKind(req.Action),
				Enabled:    enabled,
			})
		}
		cfg.CustomRules = rules

	case FamilyEscalation:
		if clearFamily {
			cfg.Escalation = moderation.EscalationPolicy{}
			return nil
		}
		var req EscalationRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("invalid %s payload: %w", family, err)
		}
		if err := validateEscalation(&req); err != nil {
			return err
		}
		autoAction := models.ActionKind(req.AutoAction)
		if req.AutoAction == "" {
			autoAction = models.ActionKick
		}
		cfg.Escalation = moderation.EscalationPolicy{
			MuteThreshold: req.MuteThreshold,
			KickThreshold: req.KickThreshold,
			MuteDuration:  time.Duration(req.MuteDurationSeconds) * time.Second,
			AutoAction:    autoAction,
		}

	default:
		return pkgerrors.ErrUnknownRuleKind.WithDetail("message", fmt.Sprintf("unknown rule family '%s'", family))
	}

	return nil
}
