package service

import (
	"context"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/presence"
)

// IDGenerator ID生成器
type IDGenerator interface {
	NextID() int64
}

// Pusher 实时推送，尽力而为
type Pusher interface {
	SendToUser(ctx context.Context, userID int64, event presence.Event)
	IsOnline(userID int64) bool
}

// Notifier 把关系事件落库为通知
type Notifier interface {
	Notify(ctx context.Context, event model.RelationshipEvent) error
}

// EventPublisher 对外发布领域事件
type EventPublisher interface {
	Publish(ctx context.Context, event model.DomainEvent) error
}
