package groups

import (
	"context"
	"strconv"
	"time"

	"warden/internal/broker"
	"warden/pkg/models"
)

// ConfigEventProducer notifies running engines about config changes so
// they can invalidate cached group snapshots.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishGroupConfigEvent(ctx context.Context, action string, groupID int64, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType: models.EventTypeGroupConfigUpdated,
		GroupID:   groupID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) PublishKeywordRuleEvent(ctx context.Context, action string, groupID int64, keyword, changedBy string) error {
	event := models.ConfigUpdateEvent{
		EventType: models.EventTypeKeywordRuleUpdated,
		GroupID:   groupID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Metadata: map[string]interface{}{
			"keyword": keyword,
		},
	}
	return p.publishEvent(ctx, event)
}

func (p *ConfigEventProducer) publishEvent(ctx context.Context, event models.ConfigUpdateEvent) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	// Key by group so updates for one group stay ordered.
	key := strconv.FormatInt(event.GroupID, 10)
	return p.producer.Publish(ctx, p.topic, key, event)
}
