package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tsync-social/apps/social-service/internal/model"
)

// MessageProducer 消息生产者
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

// eventMessage 领域事件在Kafka上的格式
type eventMessage struct {
	Event       string      `json:"event"`
	RecipientID int64       `json:"recipient_id"`
	ActorID     int64       `json:"actor_id"`
	Data        interface{} `json:"data"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// KafkaEventPublisher 把领域事件写入Kafka，按接收方分区保证同一用户有序
type KafkaEventPublisher struct {
	producer MessageProducer
	topic    string
	now      func() time.Time
}

// NewKafkaEventPublisher 创建发布器
func NewKafkaEventPublisher(producer MessageProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish 发布事件
func (p *KafkaEventPublisher) Publish(ctx context.Context, event model.DomainEvent) error {
	value, err := json.Marshal(eventMessage{
		Event:       event.EventName(),
		RecipientID: event.RecipientID(),
		ActorID:     event.ActorID(),
		Data:        event.Payload(),
		OccurredAt:  p.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.EventName(), err)
	}

	key := []byte(strconv.FormatInt(event.RecipientID(), 10))
	if err := p.producer.SendMessage(ctx, p.topic, key, value); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventName(), err)
	}
	return nil
}
