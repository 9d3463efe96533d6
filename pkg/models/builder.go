package models

import "time"

type ChatEventBuilder struct {
	event *ChatEvent
}

func NewChatEventBuilder() *ChatEventBuilder {
	return &ChatEventBuilder{
		event: &ChatEvent{
			Type:     EventTypeMessage,
			Metadata: Metadata{},
		},
	}
}

func (b *ChatEventBuilder) WithID(id string) *ChatEventBuilder {
	b.event.ID = id
	return b
}

func (b *ChatEventBuilder) WithType(t EventType) *ChatEventBuilder {
	b.event.Type = t
	return b
}

func (b *ChatEventBuilder) WithGroup(groupID int64) *ChatEventBuilder {
	b.event.GroupID = groupID
	return b
}

func (b *ChatEventBuilder) WithSender(userID int64) *ChatEventBuilder {
	b.event.UserID = userID
	return b
}

func (b *ChatEventBuilder) WithMessage(messageID, text string) *ChatEventBuilder {
	b.event.MessageID = messageID
	b.event.Text = text
	return b
}

func (b *ChatEventBuilder) WithPrivileged(privileged bool) *ChatEventBuilder {
	b.event.IsPrivileged = privileged
	return b
}

func (b *ChatEventBuilder) WithAccountCreatedAt(createdAt time.Time) *ChatEventBuilder {
	b.event.AccountCreatedAt = &createdAt
	return b
}

func (b *ChatEventBuilder) WithNewMembers(members ...Member) *ChatEventBuilder {
	b.event.Type = EventTypeMemberJoin
	b.event.NewMembers = members
	return b
}

func (b *ChatEventBuilder) WithTimestamp(timestamp time.Time) *ChatEventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *ChatEventBuilder) WithTraceID(traceID string) *ChatEventBuilder {
	b.event.Metadata.TraceID = traceID
	return b
}

func (b *ChatEventBuilder) Build() *ChatEvent {
	if b.event.Timestamp.IsZero() {
		b.event.Timestamp = time.Now()
	}
	return b.event
}
