package groups

import (
	"fmt"

	"warden/internal/moderation"
	"warden/pkg/cel"
	"warden/pkg/models"
)

// sanctionKinds are the action kinds a rule may be configured with.
// Lift actions (unmute, unban) are engine-issued only.
var sanctionKinds = map[models.ActionKind]bool{
	models.ActionNotify: true,
	models.ActionDelete: true,
	models.ActionWarn:   true,
	models.ActionMute:   true,
	models.ActionKick:   true,
	models.ActionBan:    true,
}

func ValidateUpsertConfig(req UpsertConfigRequest) error {
	if req.LinkFilter != nil {
		if err := validateRuleAction("link_filter", req.LinkFilter.Action); err != nil {
			return err
		}
	}
	if req.MentionFilter != nil {
		if err := validateRuleAction("mention_filter", req.MentionFilter.Action); err != nil {
			return err
		}
	}
	if req.BadWordFilter != nil {
		if err := validateBadWordRule(req.BadWordFilter); err != nil {
			return err
		}
	}
	if req.SpamRate != nil {
		if err := validateRateRule("spam_rate", req.SpamRate); err != nil {
			return err
		}
	}
	if req.FloodRate != nil {
		if err := validateRateRule("flood_rate", req.FloodRate); err != nil {
			return err
		}
	}
	if req.NewAccount != nil {
		if err := validateNewAccountRule(req.NewAccount); err != nil {
			return err
		}
	}

	if len(req.CustomRules) > 0 {
		if err := validateCustomRules(req.CustomRules); err != nil {
			return err
		}
	}

	if req.Escalation != nil {
		if err := validateEscalation(req.Escalation); err != nil {
			return err
		}
	}

	return nil
}

func validateBadWordRule(req *BadWordRuleRequest) error {
	if err := validateRuleAction("bad_word_filter", req.Action); err != nil {
		return err
	}
	if req.Enabled && len(req.Words) == 0 {
		return fmt.Errorf("bad_word_filter.words cannot be empty when the filter is enabled")
	}
	return nil
}

func validateNewAccountRule(req *NewAccountRuleRequest) error {
	if err := validateRuleAction("new_account", req.Action); err != nil {
		return err
	}
	if req.MinAgeDays <= 0 {
		return fmt.Errorf("new_account.min_age_days must be positive")
	}
	return nil
}

func validateCustomRules(rules []CustomRuleRequest) error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	for i, rule := range rules {
		if rule.Name == "" {
			return fmt.Errorf("custom_rules[%d].name is required", i)
		}
		if rule.Expression == "" {
			return fmt.Errorf("custom_rules[%d].expression is required", i)
		}
		if err := validateRuleAction(fmt.Sprintf("custom_rules[%d]", i), rule.Action); err != nil {
			return err
		}
		if err := evaluator.ValidateRuleExpression(rule.Expression); err != nil {
			return fmt.Errorf("invalid CEL expression in custom_rules[%d]: %w", i, err)
		}
	}
	return nil
}

func validateEscalation(req *EscalationRequest) error {
	if req.MuteThreshold <= 0 {
		return fmt.Errorf("escalation.mute_threshold must be positive")
	}
	if req.KickThreshold <= req.MuteThreshold {
		return fmt.Errorf("escalation.kick_threshold must be greater than mute_threshold (%d)", req.MuteThreshold)
	}
	if req.MuteDurationSeconds < 0 {
		return fmt.Errorf("escalation.mute_duration_seconds must be non-negative")
	}
	if req.AutoAction != "" {
		kind := models.ActionKind(req.AutoAction)
		if kind != models.ActionKick && kind != models.ActionBan {
			return fmt.Errorf("invalid escalation.auto_action: %s. Allowed: kick, ban", req.AutoAction)
		}
	}
	return nil
}

func ValidateAddKeyword(req AddKeywordRequest) error {
	if moderation.NormalizeKeyword(req.Keyword) == "" {
		return fmt.Errorf("keyword is required")
	}
	return validateRuleAction("keyword", req.Action)
}

func validateRateRule(field string, req *RateRuleRequest) error {
	if err := validateRuleAction(field, req.Action); err != nil {
		return err
	}
	if req.Limit <= 0 {
		return fmt.Errorf("%s.limit must be positive", field)
	}
	if req.WindowSeconds <= 0 {
		return fmt.Errorf("%s.window_seconds must be positive", field)
	}
	return nil
}

func validateRuleAction(field, action string) error {
	if !sanctionKinds[models.ActionKind(action)] {
		return fmt.Errorf("invalid %s.action: %s. Allowed: notify, delete, warn, mute, kick, ban", field, action)
	}
	return nil
}
