package models

import "time"

type EventType string

const (
	EventTypeMessage    EventType = "message"
	EventTypeMemberJoin EventType = "member_join"
)

// ChatEvent is the wire envelope for an inbound event from the chat
// transport. A message event fills UserID/Text; a member_join event
// fills NewMembers.
type ChatEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	GroupID      int64     `json:"group_id"`
	UserID       int64     `json:"user_id,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	IsPrivileged bool      `json:"is_privileged,omitempty"`
	Text         string    `json:"text,omitempty"`
	// AccountCreatedAt is supplied by the transport when known; the
	// new-account check is skipped when it is nil.
	AccountCreatedAt *time.Time `json:"account_created_at,omitempty"`
	NewMembers       []Member   `json:"new_members,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	Metadata         Metadata   `json:"metadata"`
}

type Member struct {
	UserID           int64      `json:"user_id"`
	AccountCreatedAt *time.Time `json:"account_created_at,omitempty"`
}

type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
	Source  string `json:"source,omitempty"`
}
