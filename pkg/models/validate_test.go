package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChatEvent(t *testing.T) {
	now := time.Now()

	valid := func() *ChatEvent {
		return &ChatEvent{
			ID:        "evt-1",
			Type:      EventTypeMessage,
			GroupID:   42,
			UserID:    7,
			Text:      "hello",
			Timestamp: now,
		}
	}

	tests := []struct {
		name      string
		mutate    func(*ChatEvent)
		wantField string
	}{
		{"valid message", func(e *ChatEvent) {}, ""},
		{"missing id", func(e *ChatEvent) { e.ID = "" }, "id"},
		{"missing group", func(e *ChatEvent) { e.GroupID = 0 }, "group_id"},
		{"zero timestamp", func(e *ChatEvent) { e.Timestamp = time.Time{} }, "timestamp"},
		{"message without sender", func(e *ChatEvent) { e.UserID = 0 }, "user_id"},
		{"unknown type", func(e *ChatEvent) { e.Type = "presence" }, "type"},
		{"join without members", func(e *ChatEvent) {
			e.Type = EventTypeMemberJoin
			e.NewMembers = nil
		}, "new_members"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := valid()
			tt.mutate(evt)
			err := ValidateChatEvent(evt)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidateAction(t *testing.T) {
	action := &Action{
		ID:       "a-1",
		Kind:     ActionDelete,
		GroupID:  42,
		UserID:   7,
		IssuedAt: time.Now(),
	}
	assert.NoError(t, ValidateAction(action))

	action.Kind = "obliterate"
	var verr *ValidationError
	require.ErrorAs(t, ValidateAction(action), &verr)
	assert.Equal(t, "kind", verr.Field)
}

// Action kinds and config-change verbs share wire spellings but are
// separate vocabularies; both must stay usable side by side.
func TestActionKindsDistinctFromChangeActions(t *testing.T) {
	evt := ConfigUpdateEvent{
		EventType: EventTypeGroupConfigUpdated,
		GroupID:   42,
		Action:    ChangeActionDelete,
		Timestamp: time.Now(),
	}
	assert.Equal(t, "delete", evt.Action)
	assert.Equal(t, ActionKind("delete"), ActionDelete)
	assert.True(t, KnownActionKind(ActionDelete))

	assert.Equal(t, "create", ChangeActionCreate)
	assert.Equal(t, "update", ChangeActionUpdate)
}
