package broker

import (
	"context"
	"encoding/json"
	"time"
)

// Message is a consumed broker record. Value is the raw JSON payload;
// the consuming service owns the concrete type.
type Message struct {
	Key   string
	Value []byte
}

// DLQEnvelope wraps a message that exhausted processing retries.
type DLQEnvelope struct {
	Payload     json.RawMessage `json:"payload"`
	Reason      string          `json:"reason"`
	SourceTopic string          `json:"source_topic"`
	FailedAt    time.Time       `json:"failed_at"`
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error
