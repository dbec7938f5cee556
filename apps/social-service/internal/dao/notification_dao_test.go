package dao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"tsync-social/apps/social-service/internal/model"
)

func TestNotificationDAO_ListNewestFirstWithFilter(t *testing.T) {
	d := NewNotificationDAO(newTestDB(t))
	base := time.Now().UTC().Add(-time.Hour)

	older := newNotification(7, false, base)
	newer := newNotification(7, true, base.Add(time.Minute))
	newest := newNotification(7, false, base.Add(2*time.Minute))
	foreign := newNotification(8, false, base)
	for _, n := range []*model.Notification{older, newer, newest, foreign} {
		require.NoError(t, d.CreateNotification(bg, n))
	}

	items, total, err := d.ListNotifications(bg, model.NotificationQuery{RecipientID: 7, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{newest.ID, newer.ID, older.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})

	unread := false
	items, total, err = d.ListNotifications(bg, model.NotificationQuery{RecipientID: 7, Read: &unread, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, older.ID, items[0].ID)
}

func TestNotificationDAO_MarkReadIsScoped(t *testing.T) {
	d := NewNotificationDAO(newTestDB(t))
	now := time.Now().UTC()

	mine := newNotification(7, false, now)
	mine2 := newNotification(7, false, now)
	theirs := newNotification(8, false, now)
	for _, n := range []*model.Notification{mine, mine2, theirs} {
		require.NoError(t, d.CreateNotification(bg, n))
	}

	changed, err := d.MarkRead(bg, 7, []int64{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	count, err := d.CountUnread(bg, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "other users' notifications are untouched")

	changed, err = d.MarkRead(bg, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	count, err = d.CountUnread(bg, 7)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationDAO_DeleteIsScopedAndIdempotent(t *testing.T) {
	d := NewNotificationDAO(newTestDB(t))
	now := time.Now().UTC()

	mine := newNotification(7, true, now)
	theirs := newNotification(8, false, now)
	require.NoError(t, d.CreateNotification(bg, mine))
	require.NoError(t, d.CreateNotification(bg, theirs))

	removed, err := d.DeleteNotifications(bg, 7, []int64{mine.ID, theirs.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = d.DeleteNotifications(bg, 7, []int64{mine.ID})
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, total, err := d.ListNotifications(bg, model.NotificationQuery{RecipientID: 8, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestNotificationFilter(t *testing.T) {
	read := true
	assert.Equal(t, bson.M{"recipient_id": int64(7)}, notificationFilter(7, nil, nil))
	assert.Equal(t, bson.M{
		"recipient_id": int64(7),
		"read":         true,
		"_id":          bson.M{"$in": []int64{1, 2}},
	}, notificationFilter(7, &read, []int64{1, 2}))
}
