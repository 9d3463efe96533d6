package models

import "time"

type ActionKind string

const (
	ActionNotify ActionKind = "notify"
	ActionDelete ActionKind = "delete"
	ActionWarn   ActionKind = "warn"
	ActionMute   ActionKind = "mute"
	ActionKick   ActionKind = "kick"
	ActionBan    ActionKind = "ban"
	ActionUnmute ActionKind = "unmute"
	ActionUnban  ActionKind = "unban"
)

// Action is the wire envelope for an outbound moderation action. The
// engine only describes what should happen; the transport collaborator
// deletes messages, restricts members and notifies users.
type Action struct {
	ID      string     `json:"id"`
	Kind    ActionKind `json:"kind"`
	GroupID int64      `json:"group_id"`
	UserID  int64      `json:"user_id"`
	// MessageID is set when the action targets a specific message
	// (kind=delete, or the message that triggered a sanction).
	MessageID       string    `json:"message_id,omitempty"`
	Rule            string    `json:"rule,omitempty"`
	Reason          string    `json:"reason"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
	Metadata        Metadata  `json:"metadata"`
}

func KnownActionKind(kind ActionKind) bool {
	switch kind {
	case ActionNotify, ActionDelete, ActionWarn, ActionMute, ActionKick, ActionBan, ActionUnmute, ActionUnban:
		return true
	}
	return false
}
