package dao

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/database"
)

const notificationCollection = "notifications"

// notificationMongoDAO 通知数据访问实现（MongoDB）
type notificationMongoDAO struct {
	collection *mongo.Collection
}

// NewNotificationMongoDAO 创建MongoDB通知DAO实例
func NewNotificationMongoDAO(db *database.MongoDB) NotificationDAO {
	return newNotificationMongoDAO(db.GetCollection(notificationCollection))
}

func newNotificationMongoDAO(collection *mongo.Collection) *notificationMongoDAO {
	return &notificationMongoDAO{collection: collection}
}

// EnsureNotificationIndexes 创建 (recipient_id, read, created_at) 索引
func EnsureNotificationIndexes(ctx context.Context, db *database.MongoDB) error {
	_, err := db.GetCollection(notificationCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "recipient_id", Value: 1},
			{Key: "read", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("idx_notification_recipient_read_created"),
	})
	if err != nil {
		return fmt.Errorf("create notification index: %w", err)
	}
	return nil
}

// notificationFilter 构造查询条件，recipient_id始终参与过滤
func notificationFilter(recipientID int64, read *bool, ids []int64) bson.M {
	filter := bson.M{"recipient_id": recipientID}
	if read != nil {
		filter["read"] = *read
	}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}
	return filter
}

// CreateNotification 创建通知
func (d *notificationMongoDAO) CreateNotification(ctx context.Context, n *model.Notification) error {
	if _, err := d.collection.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications 分页查询，按创建时间倒序
func (d *notificationMongoDAO) ListNotifications(ctx context.Context, query model.NotificationQuery) ([]*model.Notification, int64, error) {
	filter := notificationFilter(query.RecipientID, query.Read, nil)

	total, err := d.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(query.Offset)).
		SetLimit(int64(query.Limit))
	cursor, err := d.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*model.Notification, 0, query.Limit)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread 未读数量
func (d *notificationMongoDAO) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	unread := false
	count, err := d.collection.CountDocuments(ctx, notificationFilter(recipientID, &unread, nil))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead 标记已读，只作用于该用户的通知
func (d *notificationMongoDAO) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	unread := false
	result, err := d.collection.UpdateMany(ctx,
		notificationFilter(recipientID, &unread, ids),
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

// DeleteNotifications 删除通知，只作用于该用户的通知
func (d *notificationMongoDAO) DeleteNotifications(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := d.collection.DeleteMany(ctx, notificationFilter(recipientID, nil, ids))
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return result.DeletedCount, nil
}
