package dao

import (
	"context"
	"fmt"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/database"
)

// notificationDAO 通知数据访问实现（PostgreSQL）
type notificationDAO struct {
	db *database.PostgreSQL
}

// NewNotificationDAO 创建通知DAO实例
func NewNotificationDAO(db *database.PostgreSQL) NotificationDAO {
	return &notificationDAO{db: db}
}

// CreateNotification 创建通知
func (d *notificationDAO) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := d.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListNotifications 分页查询，按创建时间倒序
func (d *notificationDAO) ListNotifications(ctx context.Context, query model.NotificationQuery) ([]*model.Notification, int64, error) {
	db := d.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient_id = ?", query.RecipientID)
	if query.Read != nil {
		db = db.Where("read = ?", *query.Read)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var items []*model.Notification
	err := db.Order("created_at DESC").Order("id DESC").
		Offset(query.Offset).
		Limit(query.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread 未读数量
func (d *notificationDAO) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead 标记已读，只作用于该用户的通知
func (d *notificationDAO) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	db := d.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false)
	if len(ids) > 0 {
		db = db.Where("id IN ?", ids)
	}
	result := db.Update("read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteNotifications 删除通知，只作用于该用户的通知
func (d *notificationDAO) DeleteNotifications(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := d.db.WithContext(ctx).
		Where("recipient_id = ? AND id IN ?", recipientID, ids).
		Delete(&model.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
