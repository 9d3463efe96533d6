package moderation

import (
	"time"

	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

// RuleKind names a moderation check family.
type RuleKind string

const (
	RuleLink       RuleKind = "link"
	RuleMention    RuleKind = "mention"
	RuleBadWord    RuleKind = "bad_word"
	RuleSpam       RuleKind = "spam"
	RuleFlood      RuleKind = "flood"
	RuleNewAccount RuleKind = "new_account"
	RuleKeyword    RuleKind = "keyword"
	RuleCustom     RuleKind = "custom"
	RuleEscalation RuleKind = "escalation"
)

func ParseRuleKind(s string) (RuleKind, error) {
	switch RuleKind(s) {
	case RuleLink, RuleMention, RuleBadWord, RuleSpam, RuleFlood, RuleNewAccount, RuleKeyword, RuleCustom, RuleEscalation:
		return RuleKind(s), nil
	}
	return "", pkgerrors.ErrUnknownRuleKind.WithDetail("message", "unknown rule kind '"+s+"'")
}

// GroupConfig is the read-only config snapshot the engine receives per
// evaluation. A nil rule family means the family is disabled. The
// engine never mutates a snapshot.
type GroupConfig struct {
	GroupID       int64             `json:"group_id"`
	LinkFilter    *FilterRule       `json:"link_filter,omitempty"`
	MentionFilter *FilterRule       `json:"mention_filter,omitempty"`
	BadWordFilter *BadWordRule      `json:"bad_word_filter,omitempty"`
	SpamRate      *RateRule         `json:"spam_rate,omitempty"`
	FloodRate     *RateRule         `json:"flood_rate,omitempty"`
	NewAccount    *NewAccountRule   `json:"new_account,omitempty"`
	Keywords      []KeywordRule     `json:"keywords,omitempty"`
	CustomRules   []CustomRule      `json:"custom_rules,omitempty"`
	Escalation    EscalationPolicy  `json:"escalation"`
}

type FilterRule struct {
	Enabled      bool              `json:"enabled"`
	Action       models.ActionKind `json:"action"`
	MuteDuration time.Duration     `json:"mute_duration,omitempty"`
}

type BadWordRule struct {
	Enabled      bool              `json:"enabled"`
	Action       models.ActionKind `json:"action"`
	MuteDuration time.Duration     `json:"mute_duration,omitempty"`
	Words        []string          `json:"words"`
}

type RateRule struct {
	Enabled bool              `json:"enabled"`
	Action  models.ActionKind `json:"action"`
	// Limit is the number of events inside Window that triggers the
	// configured action.
	Limit        int           `json:"limit"`
	Window       time.Duration `json:"window"`
	MuteDuration time.Duration `json:"mute_duration,omitempty"`
}

type NewAccountRule struct {
	Enabled    bool              `json:"enabled"`
	Action     models.ActionKind `json:"action"`
	MinAgeDays int               `json:"min_age_days"`
}

// KeywordRule is unique by normalized keyword within a group;
// re-adding an existing keyword replaces its action.
type KeywordRule struct {
	Keyword string            `json:"keyword"`
	Action  models.ActionKind `json:"action"`
	AddedBy int64             `json:"added_by,omitempty"`
	AddedAt time.Time         `json:"added_at"`
}

// CustomRule is an admin-defined CEL expression over message events.
// Custom rules run after all built-in checks.
type CustomRule struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Expression string            `json:"expression"`
	Action     models.ActionKind `json:"action"`
	Enabled    bool              `json:"enabled"`
}

// EscalationPolicy gates the warning-count state machine. Invariant:
// MuteThreshold < KickThreshold.
type EscalationPolicy struct {
	MuteThreshold int               `json:"mute_threshold"`
	KickThreshold int               `json:"kick_threshold"`
	MuteDuration  time.Duration     `json:"mute_duration"`
	AutoAction    models.ActionKind `json:"auto_action"` // kick or ban
}

func (p EscalationPolicy) Valid() bool {
	return p.MuteThreshold > 0 && p.KickThreshold > p.MuteThreshold
}

// Warning is immutable once issued; removal is a logical flag flip.
type Warning struct {
	ID       string    `json:"id"`
	GroupID  int64     `json:"group_id"`
	UserID   int64     `json:"user_id"`
	Reason   string    `json:"reason"`
	IssuedBy int64     `json:"issued_by"`
	IssuedAt time.Time `json:"issued_at"`
	Active   bool      `json:"active"`
}

type RestrictionKind string

const (
	RestrictionMute RestrictionKind = "mute"
	RestrictionBan  RestrictionKind = "ban"
)

// Restriction is an active timed or permanent limitation on a user in
// a group. ExpiresAt nil means permanent.
type Restriction struct {
	GroupID   int64           `json:"group_id"`
	UserID    int64           `json:"user_id"`
	Kind      RestrictionKind `json:"kind"`
	Reason    string          `json:"reason"`
	IssuedAt  time.Time       `json:"issued_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}
