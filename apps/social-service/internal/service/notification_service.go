package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tsync-social/apps/social-service/internal/dao"
	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/telemetry"
)

// NotificationOptions 通知列表参数
type NotificationOptions struct {
	DefaultFilter string // read | all
	PageSize      int
	MaxPageSize   int
}

// NotificationService 通知服务，写入后尽力推送给在线用户
type NotificationService struct {
	dao    dao.NotificationDAO
	ids    IDGenerator
	pusher Pusher
	opts   NotificationOptions
	logger logger.Logger
	now    func() time.Time
}

// NewNotificationService 创建通知服务
func NewNotificationService(notificationDAO dao.NotificationDAO, ids IDGenerator, pusher Pusher, opts NotificationOptions, log logger.Logger) *NotificationService {
	if opts.DefaultFilter == "" {
		opts.DefaultFilter = model.NotificationFilterRead
	}
	if opts.PageSize <= 0 {
		opts.PageSize = model.DefaultPageSize
	}
	if opts.MaxPageSize < opts.PageSize {
		opts.MaxPageSize = model.MaxPageSize
	}
	return &NotificationService{
		dao:    notificationDAO,
		ids:    ids,
		pusher: pusher,
		opts:   opts,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateNotification 持久化通知并推送给接收方，推送失败不影响结果
func (s *NotificationService) CreateNotification(ctx context.Context, input model.CreateNotificationInput) (*model.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.CreateNotification")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("notification.recipient_id", input.RecipientID),
		attribute.String("notification.type", input.Type),
	)

	if input.RecipientID <= 0 {
		return nil, fail(span, model.InvalidArgument("invalid recipient id %d", input.RecipientID), "invalid recipient")
	}
	if !model.ValidateNotificationType(input.Type) {
		return nil, fail(span, model.InvalidArgument("invalid notification type %q", input.Type), "invalid type")
	}

	n := &model.Notification{
		ID:          s.ids.NextID(),
		RecipientID: input.RecipientID,
		SenderID:    input.SenderID,
		Type:        input.Type,
		Message:     input.Message,
		RelatedID:   input.RelatedID,
		RelatedKind: input.RelatedKind,
		Read:        false,
		CreatedAt:   s.now(),
	}
	if err := s.dao.CreateNotification(ctx, n); err != nil {
		return nil, fail(span, err, "failed to save notification")
	}
	span.SetAttributes(attribute.Int64("notification.id", n.ID))

	if s.pusher != nil {
		s.pusher.SendToUser(ctx, n.RecipientID, model.NotificationCreated{Notification: n})
	}

	s.logger.Debug(ctx, "Notification created",
		logger.F("notification_id", n.ID),
		logger.F("recipient_id", n.RecipientID),
		logger.F("type", n.Type))
	return n, nil
}

// Notify 关系事件转为通知
func (s *NotificationService) Notify(ctx context.Context, event model.RelationshipEvent) error {
	_, err := s.CreateNotification(ctx, event.Notification())
	return err
}

// readFilter 列表的已读过滤条件
func (s *NotificationService) readFilter(unreadOnly bool) *bool {
	if unreadOnly {
		unread := false
		return &unread
	}
	if s.opts.DefaultFilter == model.NotificationFilterRead {
		read := true
		return &read
	}
	return nil
}

// GetUserNotifications 分页查询通知，按创建时间倒序
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID int64, q model.ListQuery) (*model.NotificationPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.GetUserNotifications")
	defer span.End()

	q = q.Normalize(s.opts.PageSize, s.opts.MaxPageSize)
	span.SetAttributes(
		attribute.Int64("notification.recipient_id", userID),
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
		attribute.Bool("unread_only", q.UnreadOnly),
	)

	items, total, err := s.dao.ListNotifications(ctx, model.NotificationQuery{
		RecipientID: userID,
		Read:        s.readFilter(q.UnreadOnly),
		Offset:      (q.Page - 1) * q.Limit,
		Limit:       q.Limit,
	})
	if err != nil {
		return nil, fail(span, err, "failed to list notifications")
	}

	unread, err := s.dao.CountUnread(ctx, userID)
	if err != nil {
		return nil, fail(span, err, "failed to count unread notifications")
	}

	if items == nil {
		items = []*model.Notification{}
	}
	return &model.NotificationPage{
		Items:       items,
		Total:       total,
		UnreadCount: unread,
		Page:        q.Page,
		Limit:       q.Limit,
	}, nil
}

// MarkAsRead 标记已读，ids为空时标记全部，返回剩余未读数
func (s *NotificationService) MarkAsRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.MarkAsRead")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("notification.recipient_id", userID),
		attribute.Int("notification.ids", len(ids)),
	)

	updated, err := s.dao.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, fail(span, err, "failed to mark notifications read")
	}

	unread, err := s.dao.CountUnread(ctx, userID)
	if err != nil {
		return 0, fail(span, err, "failed to count unread notifications")
	}

	s.logger.Debug(ctx, "Notifications marked read",
		logger.F("updated", updated),
		logger.F("unread", unread))
	span.SetStatus(codes.Ok, "marked read")
	return unread, nil
}

// DeleteNotifications 删除自己的通知，重复删除返回0
func (s *NotificationService) DeleteNotifications(ctx context.Context, userID int64, ids []int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.DeleteNotifications")
	defer span.End()

	if len(ids) == 0 {
		return 0, fail(span, model.InvalidArgument("notification ids are required"), "missing ids")
	}

	deleted, err := s.dao.DeleteNotifications(ctx, userID, ids)
	if err != nil {
		return 0, fail(span, err, "failed to delete notifications")
	}
	span.SetAttributes(attribute.Int64("notification.deleted", deleted))
	return deleted, nil
}

// GetUnreadCount 未读数
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.GetUnreadCount")
	defer span.End()

	count, err := s.dao.CountUnread(ctx, userID)
	if err != nil {
		return 0, fail(span, err, "failed to count unread notifications")
	}
	return count, nil
}
