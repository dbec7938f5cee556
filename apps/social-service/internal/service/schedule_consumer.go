package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/telemetry"
)

// ScheduleConsumer 消费外部日程事件，推送给在线的参与者
type ScheduleConsumer struct {
	pusher Pusher
	logger logger.Logger
}

// NewScheduleConsumer 创建日程事件消费者
func NewScheduleConsumer(pusher Pusher, log logger.Logger) *ScheduleConsumer {
	return &ScheduleConsumer{pusher: pusher, logger: log}
}

// HandleMessage 实现kafka.ConsumerHandler
func (c *ScheduleConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event model.EventScheduled
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode scheduled event at offset %d: %w", msg.Offset, err)
	}
	if event.EventID <= 0 {
		return fmt.Errorf("scheduled event at offset %d has no event id", msg.Offset)
	}

	delivered := c.Dispatch(ctx, &event)
	c.logger.Info(ctx, "Scheduled event dispatched",
		logger.F("event_id", event.EventID),
		logger.F("attendees", len(event.AttendeeIDs)),
		logger.F("delivered", delivered))
	return nil
}

// Dispatch 向在线参与者推送，返回推送人数
func (c *ScheduleConsumer) Dispatch(ctx context.Context, event *model.EventScheduled) int {
	ctx, span := telemetry.StartSpan(ctx, "social.service.DispatchScheduledEvent")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", event.EventID))

	seen := make(map[int64]struct{}, len(event.AttendeeIDs))
	delivered := 0
	for _, attendeeID := range event.AttendeeIDs {
		if _, dup := seen[attendeeID]; dup {
			continue
		}
		seen[attendeeID] = struct{}{}

		if !c.pusher.IsOnline(attendeeID) {
			continue
		}
		c.pusher.SendToUser(ctx, attendeeID, model.EventScheduledPush{Event: event, AttendeeID: attendeeID})
		delivered++
	}

	span.SetAttributes(attribute.Int("event.delivered", delivered))
	return delivered
}
