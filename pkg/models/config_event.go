package models

import "time"

// ConfigUpdateEvent notifies running engines that moderation config
// changed so they can invalidate cached group snapshots.
type ConfigUpdateEvent struct {
	EventType string                 `json:"event_type"`
	GroupID   int64                  `json:"group_id,omitempty"`
	RuleID    string                 `json:"rule_id,omitempty"`
	Action    string                 `json:"action"` // "create", "update", "delete"
	Timestamp time.Time              `json:"timestamp"`
	ChangedBy string                 `json:"changed_by,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeGroupConfigUpdated = "group_config_updated"
	EventTypeKeywordRuleUpdated = "keyword_rule_updated"
)

const (
	ChangeActionCreate = "create"
	ChangeActionUpdate = "update"
	ChangeActionDelete = "delete"
)
