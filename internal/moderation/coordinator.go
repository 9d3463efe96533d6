package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"warden/internal/logger"
	"warden/pkg/cel"
	"warden/pkg/clock"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/metrics"
	"warden/pkg/models"
	"warden/pkg/tracing"
)

// ConfigProvider supplies a consistent read-only config snapshot per
// evaluation. Implementations return CONFIG_MISSING when a group has
// no stored config, which the coordinator treats as all rules
// disabled.
type ConfigProvider interface {
	Snapshot(ctx context.Context, groupID int64) (*GroupConfig, error)
}

// Coordinator is the moderation façade. It receives inbound events,
// runs the checks in a fixed order and returns action descriptors; it
// never calls any transport API itself.
type Coordinator struct {
	configs    ConfigProvider
	windows    *RateWindowTracker
	ledger     *WarningLedger
	mutes      *MuteScheduler
	escalation *EscalationEngine
	evaluator  *cel.Evaluator
	clk        clock.Clock
	logger     logger.Logger

	// expiryFn receives the lift action when a scheduled restriction
	// expires, outside of any OnMessage call.
	expiryFn func(models.Action)
}

type CoordinatorOption func(*Coordinator)

func WithClock(clk clock.Clock) CoordinatorOption {
	return func(c *Coordinator) {
		c.clk = clk
	}
}

func WithExpiryHandler(fn func(models.Action)) CoordinatorOption {
	return func(c *Coordinator) {
		c.expiryFn = fn
	}
}

func NewCoordinator(configs ConfigProvider, log logger.Logger, opts ...CoordinatorOption) (*Coordinator, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		configs:   configs,
		windows:   NewRateWindowTracker(),
		ledger:    NewWarningLedger(),
		evaluator: evaluator,
		clk:       clock.New(),
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mutes = NewMuteScheduler(c.clk, c.onRestrictionExpired)
	c.escalation = NewEscalationEngine(c.ledger, c.mutes)
	return c, nil
}

// OnMessage evaluates one inbound message and returns the actions to
// perform. Checks run in order: content detectors (link > mention >
// bad-word), spam window, flood window, keyword rules, custom rules;
// the first rule that produces an action short-circuits the rest, so
// one message triggers at most one autonomous sanction.
func (c *Coordinator) OnMessage(ctx context.Context, evt *models.ChatEvent) ([]models.Action, error) {
	ctx, span := tracing.GetTracer("moderation").Start(ctx, "moderation.on_message")
	defer span.End()

	start := time.Now()
	actions, err := c.evaluateMessage(ctx, evt)
	metrics.ObserveEvaluationDuration(string(models.EventTypeMessage), time.Since(start))

	status := "clean"
	if len(actions) > 0 {
		status = "flagged"
	}
	if err != nil {
		status = "error"
	}
	metrics.ModerationEventsTotal.WithLabelValues(string(models.EventTypeMessage), status).Inc()
	metrics.SetActiveRateWindows(c.windows.Len())
	metrics.SetActiveRestrictions(c.mutes.ActiveCount())

	return actions, err
}

func (c *Coordinator) evaluateMessage(ctx context.Context, evt *models.ChatEvent) ([]models.Action, error) {
	if err := models.ValidateChatEvent(evt); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	// Admins and owners are exempt from all checks; otherwise their
	// own moderation commands would flag themselves.
	if evt.IsPrivileged {
		return nil, nil
	}

	cfg, err := c.snapshot(ctx, evt.GroupID)
	if err != nil || cfg == nil {
		return nil, err
	}

	now := c.clk.Now()

	if rule, kind := c.matchContentRule(evt, cfg); rule != nil {
		return c.applyRule(ctx, evt, cfg, kind, rule.Action, rule.MuteDuration, string(kind)+" filter"), nil
	}

	if actions, ok := c.checkRateRule(ctx, evt, cfg, cfg.SpamRate, RuleSpam, now); ok {
		return actions, nil
	}
	if actions, ok := c.checkRateRule(ctx, evt, cfg, cfg.FloodRate, RuleFlood, now); ok {
		return actions, nil
	}

	if kw, ok := MatchKeyword(evt.Text, cfg.Keywords); ok {
		return c.applyRule(ctx, evt, cfg, RuleKeyword, kw.Action, 0, "keyword '"+kw.Keyword+"'"), nil
	}

	if rule := c.matchCustomRule(ctx, evt, cfg); rule != nil {
		return c.applyRule(ctx, evt, cfg, RuleCustom, rule.Action, 0, "rule '"+rule.Name+"'"), nil
	}

	return nil, nil
}

// OnMemberJoin runs the new-account check for every joined member and
// returns one action per flagged member.
func (c *Coordinator) OnMemberJoin(ctx context.Context, evt *models.ChatEvent) ([]models.Action, error) {
	ctx, span := tracing.GetTracer("moderation").Start(ctx, "moderation.on_member_join")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ObserveEvaluationDuration(string(models.EventTypeMemberJoin), time.Since(start))
	}()

	if err := models.ValidateChatEvent(evt); err != nil {
		metrics.ModerationEventsTotal.WithLabelValues(string(models.EventTypeMemberJoin), "error").Inc()
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	cfg, err := c.snapshot(ctx, evt.GroupID)
	if err != nil || cfg == nil {
		metrics.ModerationEventsTotal.WithLabelValues(string(models.EventTypeMemberJoin), "clean").Inc()
		return nil, err
	}

	rule := cfg.NewAccount
	if rule == nil || !rule.Enabled {
		metrics.ModerationEventsTotal.WithLabelValues(string(models.EventTypeMemberJoin), "clean").Inc()
		return nil, nil
	}

	now := c.clk.Now()
	var actions []models.Action
	for _, member := range evt.NewMembers {
		if member.AccountCreatedAt == nil {
			continue
		}
		if !IsNewAccount(*member.AccountCreatedAt, rule.MinAgeDays, now) {
			continue
		}

		metrics.IncRuleViolation(string(RuleNewAccount))
		memberEvt := *evt
		memberEvt.UserID = member.UserID
		actions = append(actions, c.applyRule(ctx, &memberEvt, cfg, RuleNewAccount, rule.Action, 0, "account younger than minimum age")...)
	}

	status := "clean"
	if len(actions) > 0 {
		status = "flagged"
	}
	metrics.ModerationEventsTotal.WithLabelValues(string(models.EventTypeMemberJoin), status).Inc()

	return actions, nil
}

// RollbackAction undoes the local restriction record behind an action
// whose delivery failed, so local state never claims a sanction the
// transport did not apply.
func (c *Coordinator) RollbackAction(action models.Action) {
	metrics.ActionDeliveryFailuresTotal.WithLabelValues(string(action.Kind)).Inc()
	c.escalation.Rollback(action)
}

// Ledger exposes the warning ledger for the warning management API.
func (c *Coordinator) Ledger() *WarningLedger {
	return c.ledger
}

// Mutes exposes the restriction scheduler for the restriction API.
func (c *Coordinator) Mutes() *MuteScheduler {
	return c.mutes
}

// Windows exposes the rate tracker for the window management API.
func (c *Coordinator) Windows() *RateWindowTracker {
	return c.windows
}

// AddManualWarning issues an operator warning through the same ledger
// and escalation path rule violations use. A missing group config
// still records the warning; it just cannot escalate.
func (c *Coordinator) AddManualWarning(ctx context.Context, groupID, userID int64, reason string, issuedBy int64) (Warning, []models.Action, error) {
	cfg, err := c.snapshot(ctx, groupID)
	if err != nil {
		return Warning{}, nil, err
	}

	now := c.clk.Now()
	warning, newCount := c.ledger.AddWarning(groupID, userID, reason, issuedBy, now)
	metrics.WarningsIssuedTotal.Inc()

	var policy EscalationPolicy
	if cfg != nil {
		policy = cfg.Escalation
	}
	actions := c.escalation.OnWarning(groupID, userID, newCount-1, newCount, policy, now)
	for _, action := range actions {
		metrics.IncActionEmitted(string(action.Kind), action.Rule)
	}
	return warning, actions, nil
}

func (c *Coordinator) snapshot(ctx context.Context, groupID int64) (*GroupConfig, error) {
	cfg, err := c.configs.Snapshot(ctx, groupID)
	if err != nil {
		if pkgerrors.IsConfigMissing(err) {
			// No config means all rules disabled, not a failure.
			metrics.ConfigSnapshotsTotal.WithLabelValues("missing").Inc()
			return nil, nil
		}
		c.logger.ErrorwCtx(ctx, "Failed to load group config snapshot",
			"group_id", groupID,
			"error", err,
		)
		return nil, err
	}
	return cfg, nil
}

func (c *Coordinator) matchContentRule(evt *models.ChatEvent, cfg *GroupConfig) (*FilterRule, RuleKind) {
	if cfg.LinkFilter != nil && cfg.LinkFilter.Enabled && HasLink(evt.Text) {
		metrics.IncRuleViolation(string(RuleLink))
		return cfg.LinkFilter, RuleLink
	}
	if cfg.MentionFilter != nil && cfg.MentionFilter.Enabled && HasMassMention(evt.Text) {
		metrics.IncRuleViolation(string(RuleMention))
		return cfg.MentionFilter, RuleMention
	}
	if cfg.BadWordFilter != nil && cfg.BadWordFilter.Enabled && HasBadWord(evt.Text, cfg.BadWordFilter.Words) {
		metrics.IncRuleViolation(string(RuleBadWord))
		return &FilterRule{
			Enabled:      true,
			Action:       cfg.BadWordFilter.Action,
			MuteDuration: cfg.BadWordFilter.MuteDuration,
		}, RuleBadWord
	}
	return nil, ""
}

func (c *Coordinator) checkRateRule(ctx context.Context, evt *models.ChatEvent, cfg *GroupConfig, rule *RateRule, kind RuleKind, now time.Time) ([]models.Action, bool) {
	if rule == nil || !rule.Enabled || rule.Limit <= 0 || rule.Window <= 0 {
		return nil, false
	}

	key := WindowKey{GroupID: evt.GroupID, UserID: evt.UserID, Rule: kind}
	count := c.windows.Record(key, now, rule.Window)
	if count < rule.Limit {
		return nil, false
	}

	metrics.IncRuleViolation(string(kind))
	// Clear the window so the same burst does not re-trigger on the
	// very next message.
	c.windows.Reset(key)

	return c.applyRule(ctx, evt, cfg, kind, rule.Action, rule.MuteDuration, string(kind)+" limit exceeded"), true
}

func (c *Coordinator) matchCustomRule(ctx context.Context, evt *models.ChatEvent, cfg *GroupConfig) *CustomRule {
	for i := range cfg.CustomRules {
		rule := &cfg.CustomRules[i]
		if !rule.Enabled || rule.Expression == "" {
			continue
		}

		matched, err := c.evaluator.EvaluateRule(ctx, rule.Expression, *evt)
		if err != nil {
			// Evaluation errors are local: treat as no match and keep
			// going so one bad expression cannot disable moderation.
			c.logger.WarnwCtx(ctx, "Custom rule evaluation error",
				"group_id", evt.GroupID,
				"rule_id", rule.ID,
				"error", err,
			)
			continue
		}
		if matched {
			metrics.IncRuleViolation(string(RuleCustom))
			return rule
		}
	}
	return nil
}

// applyRule turns a triggered rule into action descriptors. warn feeds
// the ledger and may append an escalation sanction; mute and ban also
// register a local restriction so expiry can be scheduled.
func (c *Coordinator) applyRule(ctx context.Context, evt *models.ChatEvent, cfg *GroupConfig, kind RuleKind, actionKind models.ActionKind, muteDuration time.Duration, reason string) []models.Action {
	now := c.clk.Now()

	base := models.Action{
		ID:        uuid.New().String(),
		Kind:      actionKind,
		GroupID:   evt.GroupID,
		UserID:    evt.UserID,
		MessageID: evt.MessageID,
		Rule:      string(kind),
		Reason:    reason,
		IssuedAt:  now,
		Metadata:  evt.Metadata,
	}

	var actions []models.Action
	switch actionKind {
	case models.ActionWarn:
		warning, newCount := c.ledger.AddWarning(evt.GroupID, evt.UserID, reason, 0, now)
		metrics.WarningsIssuedTotal.Inc()
		base.Reason = warning.Reason
		actions = append(actions, base)

		var policy EscalationPolicy
		if cfg != nil {
			policy = cfg.Escalation
		}
		actions = append(actions, c.escalation.OnWarning(evt.GroupID, evt.UserID, newCount-1, newCount, policy, now)...)

	case models.ActionMute:
		duration := muteDuration
		if duration <= 0 && cfg != nil {
			duration = cfg.Escalation.MuteDuration
		}
		c.mutes.ScheduleMute(evt.GroupID, evt.UserID, duration, reason)
		base.DurationSeconds = int64(duration / time.Second)
		actions = append(actions, base)

	case models.ActionBan:
		c.mutes.ScheduleBan(evt.GroupID, evt.UserID, 0, reason)
		actions = append(actions, base)

	case models.ActionDelete, models.ActionKick, models.ActionNotify:
		actions = append(actions, base)

	default:
		c.logger.WarnwCtx(ctx, "Rule configured with unknown action kind",
			"group_id", evt.GroupID,
			"rule", string(kind),
			"action", string(actionKind),
		)
		return nil
	}

	// A sanction consumed this burst; start the user's rate windows
	// fresh so the follow-up messages are judged on their own.
	if actionKind == models.ActionMute || actionKind == models.ActionKick || actionKind == models.ActionBan {
		c.windows.ResetUser(evt.GroupID, evt.UserID)
	}

	for _, action := range actions {
		metrics.IncActionEmitted(string(action.Kind), action.Rule)
	}
	return actions
}

func (c *Coordinator) onRestrictionExpired(groupID, userID int64, kind RestrictionKind) {
	liftKind := models.ActionUnmute
	if kind == RestrictionBan {
		liftKind = models.ActionUnban
	}

	action := models.Action{
		ID:       uuid.New().String(),
		Kind:     liftKind,
		GroupID:  groupID,
		UserID:   userID,
		Rule:     string(RuleEscalation),
		Reason:   "restriction expired",
		IssuedAt: c.clk.Now(),
	}

	metrics.SetActiveRestrictions(c.mutes.ActiveCount())
	if c.expiryFn != nil {
		c.expiryFn(action)
	}
}
