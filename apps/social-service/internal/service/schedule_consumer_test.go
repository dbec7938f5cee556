package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/presence"
)

func TestScheduleConsumer_PushesOnlineAttendeesOnce(t *testing.T) {
	router := presence.NewRouter(presence.NewRegistry(), logger.NewNop())
	online := &frameClient{id: "a"}
	router.Attach(1, online)

	consumer := NewScheduleConsumer(router, logger.NewNop())
	event := model.EventScheduled{
		EventID:     42,
		Title:       "Standup",
		OrganizerID: 9,
		AttendeeIDs: []int64{1, 2, 1},
		StartTime:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, consumer.HandleMessage(bg, &sarama.ConsumerMessage{Value: value}))

	frames := online.received(t)
	require.Len(t, frames, 1)
	assert.Equal(t, model.EventEventScheduled, frames[0].Event)

	var pushed model.EventScheduled
	require.NoError(t, json.Unmarshal(frames[0].Data, &pushed))
	assert.Equal(t, int64(42), pushed.EventID)
	assert.Equal(t, "Standup", pushed.Title)
}

func TestScheduleConsumer_Dispatch(t *testing.T) {
	router := presence.NewRouter(presence.NewRegistry(), logger.NewNop())
	router.Attach(3, &frameClient{id: "c"})
	consumer := NewScheduleConsumer(router, logger.NewNop())

	delivered := consumer.Dispatch(bg, &model.EventScheduled{EventID: 1, AttendeeIDs: []int64{2, 3, 4}})
	assert.Equal(t, 1, delivered)

	assert.Zero(t, consumer.Dispatch(bg, &model.EventScheduled{EventID: 2}))
}

func TestScheduleConsumer_RejectsMalformedMessages(t *testing.T) {
	consumer := NewScheduleConsumer(presence.NewRouter(presence.NewRegistry(), logger.NewNop()), logger.NewNop())

	assert.Error(t, consumer.HandleMessage(bg, &sarama.ConsumerMessage{Value: []byte("{not json")}))
	assert.Error(t, consumer.HandleMessage(bg, &sarama.ConsumerMessage{Value: []byte(`{"title":"x"}`)}))
}
