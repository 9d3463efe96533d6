package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateChatEvent(evt *ChatEvent) error {
	if evt == nil {
		return &ValidationError{
			Field:   "event",
			Message: "chat event cannot be nil",
		}
	}

	if evt.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "event ID is required",
		}
	}

	if evt.GroupID == 0 {
		return &ValidationError{
			Field:   "group_id",
			Message: "group ID is required",
		}
	}

	if evt.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Message: "event timestamp is required",
		}
	}

	switch evt.Type {
	case EventTypeMessage:
		if evt.UserID == 0 {
			return &ValidationError{
				Field:   "user_id",
				Message: "message events require a sender",
			}
		}
	case EventTypeMemberJoin:
		if len(evt.NewMembers) == 0 {
			return &ValidationError{
				Field:   "new_members",
				Message: "member_join events require at least one member",
			}
		}
	default:
		return &ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unknown event type '%s'", evt.Type),
		}
	}

	return nil
}

func ValidateAction(action *Action) error {
	if action == nil {
		return &ValidationError{
			Field:   "action",
			Message: "action cannot be nil",
		}
	}

	if !KnownActionKind(action.Kind) {
		return &ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown action kind '%s'", action.Kind),
		}
	}

	if action.GroupID == 0 {
		return &ValidationError{
			Field:   "group_id",
			Message: "action group ID is required",
		}
	}

	return nil
}
