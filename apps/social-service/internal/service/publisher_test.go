package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsync-social/apps/social-service/internal/model"
)

type sentMessage struct {
	topic string
	key   []byte
	value []byte
}

type fakeProducer struct {
	sent []sentMessage
	err  error
}

func (p *fakeProducer) SendMessage(_ context.Context, topic string, key, value []byte) error {
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, value: value})
	return p.err
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	producer := &fakeProducer{}
	publisher := NewKafkaEventPublisher(producer, "social-events")
	publisher.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	req := &model.FriendRequest{ID: 10, SenderID: 1, ReceiverID: 2, Status: model.RequestStatusAccepted}
	require.NoError(t, publisher.Publish(bg, model.FriendAccepted{Request: req}))

	require.Len(t, producer.sent, 1)
	msg := producer.sent[0]
	assert.Equal(t, "social-events", msg.topic)
	assert.Equal(t, "1", string(msg.key))

	var decoded struct {
		Event       string              `json:"event"`
		RecipientID int64               `json:"recipient_id"`
		ActorID     int64               `json:"actor_id"`
		Data        model.FriendRequest `json:"data"`
		OccurredAt  time.Time           `json:"occurred_at"`
	}
	require.NoError(t, json.Unmarshal(msg.value, &decoded))
	assert.Equal(t, model.NotificationFriendAccepted, decoded.Event)
	assert.Equal(t, int64(1), decoded.RecipientID)
	assert.Equal(t, int64(2), decoded.ActorID)
	assert.Equal(t, int64(10), decoded.Data.ID)
	assert.Equal(t, 2026, decoded.OccurredAt.Year())
}

func TestKafkaEventPublisher_ProducerError(t *testing.T) {
	producer := &fakeProducer{err: errors.New("queue closed")}
	publisher := NewKafkaEventPublisher(producer, "social-events")

	err := publisher.Publish(bg, model.FriendRemoved{UserID: 1, FriendID: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), model.NotificationFriendRemoved)
}
