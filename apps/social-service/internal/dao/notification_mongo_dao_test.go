package dao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"tsync-social/apps/social-service/internal/model"
)

func newMongoTest(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().
		ClientType(mtest.Mock).
		DatabaseName("social").
		CollectionName(notificationCollection))
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

// startedCommand 取出下一条已发送的命令并校验命令名
func startedCommand(mt *mtest.T, name string) bson.Raw {
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt, "expected %s command", name)
	require.Equal(mt, name, evt.CommandName)
	return evt.Command
}

// firstStatement update/delete命令中第一条语句的查询条件
func firstStatement(mt *mtest.T, cmd bson.Raw, field string) bson.Raw {
	values, err := cmd.Lookup(field).Array().Values()
	require.NoError(mt, err)
	require.Len(mt, values, 1)
	return values[0].Document().Lookup("q").Document()
}

func inIDs(mt *mtest.T, filter bson.Raw) []int64 {
	raw, err := filter.LookupErr("_id", "$in")
	if err != nil {
		return nil
	}
	values, err := raw.Array().Values()
	require.NoError(mt, err)
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.AsInt64())
	}
	return ids
}

func notificationDoc(id, recipient int64, read bool, createdAt time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "recipient_id", Value: recipient},
		{Key: "sender_id", Value: int64(99)},
		{Key: "type", Value: model.NotificationFriendRequestReceived},
		{Key: "message", Value: "hello"},
		{Key: "read", Value: read},
		{Key: "created_at", Value: createdAt},
	}
}

func TestNotificationMongoDAO_List(t *testing.T) {
	mt := newMongoTest(t)
	unread, read := false, true

	cases := []struct {
		name   string
		query  model.NotificationQuery
		read   *bool
		offset int64
		limit  int64
	}{
		{name: "all", query: model.NotificationQuery{RecipientID: 7, Limit: 20}, limit: 20},
		{name: "unread", query: model.NotificationQuery{RecipientID: 7, Read: &unread, Limit: 20}, read: &unread, limit: 20},
		{name: "read page 3", query: model.NotificationQuery{RecipientID: 7, Read: &read, Offset: 10, Limit: 5}, read: &read, offset: 10, limit: 5},
	}

	for _, tc := range cases {
		mt.Run(tc.name, func(mt *mtest.T) {
			d := newNotificationMongoDAO(mt.Coll)
			base := time.Now().UTC().Truncate(time.Millisecond)
			ns := namespace(mt)
			mt.AddMockResponses(
				mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int64(2)}}),
				mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
					notificationDoc(3, 7, false, base),
					notificationDoc(2, 7, false, base.Add(-time.Minute))),
			)

			items, total, err := d.ListNotifications(bg, tc.query)
			require.NoError(mt, err)
			assert.Equal(mt, int64(2), total)
			require.Len(mt, items, 2)
			assert.Equal(mt, []int64{3, 2}, []int64{items[0].ID, items[1].ID})
			assert.Equal(mt, int64(7), items[0].RecipientID)

			startedCommand(mt, "aggregate")
			find := startedCommand(mt, "find")
			filter := find.Lookup("filter").Document()
			assert.Equal(mt, int64(7), filter.Lookup("recipient_id").AsInt64())
			if tc.read == nil {
				_, err := filter.LookupErr("read")
				assert.Error(mt, err)
			} else {
				assert.Equal(mt, *tc.read, filter.Lookup("read").Boolean())
			}

			sort := find.Lookup("sort").Document()
			elems, err := sort.Elements()
			require.NoError(mt, err)
			require.Len(mt, elems, 2)
			assert.Equal(mt, "created_at", elems[0].Key())
			assert.Equal(mt, int64(-1), elems[0].Value().AsInt64())
			assert.Equal(mt, "_id", elems[1].Key())

			if tc.offset > 0 {
				assert.Equal(mt, tc.offset, find.Lookup("skip").AsInt64())
			}
			assert.Equal(mt, tc.limit, find.Lookup("limit").AsInt64())
		})
	}
}

func TestNotificationMongoDAO_CountUnread(t *testing.T) {
	mt := newMongoTest(t)

	mt.Run("count", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: 1}, {Key: "n", Value: int64(4)}}))

		count, err := d.CountUnread(bg, 7)
		require.NoError(mt, err)
		assert.Equal(mt, int64(4), count)
	})

	mt.Run("none", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		count, err := d.CountUnread(bg, 7)
		require.NoError(mt, err)
		assert.Equal(mt, int64(0), count)
	})
}

func TestNotificationMongoDAO_MarkReadIsScoped(t *testing.T) {
	mt := newMongoTest(t)

	cases := []struct {
		name string
		ids  []int64
	}{
		{name: "selected", ids: []int64{1, 2}},
		{name: "all of recipient", ids: nil},
	}

	for _, tc := range cases {
		mt.Run(tc.name, func(mt *mtest.T) {
			d := newNotificationMongoDAO(mt.Coll)
			mt.AddMockResponses(mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: 2},
				bson.E{Key: "nModified", Value: 2},
			))

			updated, err := d.MarkRead(bg, 7, tc.ids)
			require.NoError(mt, err)
			assert.Equal(mt, int64(2), updated)

			filter := firstStatement(mt, startedCommand(mt, "update"), "updates")
			assert.Equal(mt, int64(7), filter.Lookup("recipient_id").AsInt64())
			assert.False(mt, filter.Lookup("read").Boolean())
			assert.Equal(mt, tc.ids, inIDs(mt, filter))
		})
	}
}

func TestNotificationMongoDAO_DeleteIsScopedAndIdempotent(t *testing.T) {
	mt := newMongoTest(t)

	mt.Run("delete", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		deleted, err := d.DeleteNotifications(bg, 7, []int64{5})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), deleted)

		filter := firstStatement(mt, startedCommand(mt, "delete"), "deletes")
		assert.Equal(mt, int64(7), filter.Lookup("recipient_id").AsInt64())
		assert.Equal(mt, []int64{5}, inIDs(mt, filter))

		deleted, err = d.DeleteNotifications(bg, 7, []int64{5})
		require.NoError(mt, err)
		assert.Equal(mt, int64(0), deleted)
	})

	mt.Run("no ids", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)

		deleted, err := d.DeleteNotifications(bg, 7, nil)
		require.NoError(mt, err)
		assert.Equal(mt, int64(0), deleted)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

func TestNotificationMongoDAO_CreateAndErrors(t *testing.T) {
	mt := newMongoTest(t)

	mt.Run("create", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		n := newNotification(7, false, time.Now().UTC())
		require.NoError(mt, d.CreateNotification(bg, n))

		insert := startedCommand(mt, "insert")
		docs, err := insert.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, docs, 1)
		assert.Equal(mt, n.ID, docs[0].Document().Lookup("_id").AsInt64())
	})

	mt.Run("command error", func(mt *mtest.T) {
		d := newNotificationMongoDAO(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad filter",
		}))

		_, err := d.MarkRead(bg, 7, nil)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "mark notifications read")
	})
}
