package history

import (
	"time"

	"warden/pkg/models"
)

// ActionRecord is the stored form of a dispatched action. The engine's
// wire envelope is kept verbatim so the log can answer "what exactly
// was sent" for any group or user.
type ActionRecord struct {
	ID              string            `bson:"_id" json:"id"`
	Kind            models.ActionKind `bson:"kind" json:"kind"`
	GroupID         int64             `bson:"group_id" json:"group_id"`
	UserID          int64             `bson:"user_id" json:"user_id"`
	MessageID       string            `bson:"message_id,omitempty" json:"message_id,omitempty"`
	Rule            string            `bson:"rule,omitempty" json:"rule,omitempty"`
	Reason          string            `bson:"reason" json:"reason"`
	DurationSeconds int64             `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	IssuedAt        time.Time         `bson:"issued_at" json:"issued_at"`
	RecordedAt      time.Time         `bson:"recorded_at" json:"recorded_at"`
}

func recordFromAction(action models.Action) ActionRecord {
	return ActionRecord{
		ID:              action.ID,
		Kind:            action.Kind,
		GroupID:         action.GroupID,
		UserID:          action.UserID,
		MessageID:       action.MessageID,
		Rule:            action.Rule,
		Reason:          action.Reason,
		DurationSeconds: action.DurationSeconds,
		IssuedAt:        action.IssuedAt,
	}
}

// ListFilter narrows action log queries. Zero values mean "no filter"
// except GroupID, which is always required.
type ListFilter struct {
	GroupID int64
	UserID  int64
	Kind    models.ActionKind
	Limit   int
	Offset  int
}
