package dao

import (
	"context"

	"tsync-social/apps/social-service/internal/model"
)

// RelationshipDAO 好友关系数据访问接口
type RelationshipDAO interface {
	// 好友申请
	CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error
	GetFriendRequest(ctx context.Context, requestID int64) (*model.FriendRequest, error)
	FindPendingBetween(ctx context.Context, userA, userB int64) (*model.FriendRequest, error)
	FindRequest(ctx context.Context, senderID, receiverID int64, status string) (*model.FriendRequest, error)
	ListRequestsBetween(ctx context.Context, userA, userB int64) ([]*model.FriendRequest, error)
	TransitionFriendRequest(ctx context.Context, requestID int64, from, to string) (*model.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID int64) (*model.FriendRequest, error)
	DeleteFriendRequest(ctx context.Context, requestID int64) error
	ListSentRequests(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error)
	ListReceivedRequests(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error)
	ListAsymmetricAccepted(ctx context.Context) ([]*model.FriendRequest, error)

	// 好友关系
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)
	AddFriendEdges(ctx context.Context, userA, userB int64) error
	RemoveFriendship(ctx context.Context, userA, userB int64) error
	ListFriends(ctx context.Context, userID int64) ([]*model.Friend, error)

	// 拉黑
	CreateBlock(ctx context.Context, userID, blockedID int64) error
	DeleteBlock(ctx context.Context, userID, blockedID int64) (bool, error)
	IsBlockedEither(ctx context.Context, userA, userB int64) (bool, error)
	ListBlocked(ctx context.Context, userID int64) ([]*model.Block, error)
}

// NotificationDAO 通知数据访问接口
type NotificationDAO interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, query model.NotificationQuery) ([]*model.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
	// MarkRead ids为空时标记该用户全部通知
	MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error)
	DeleteNotifications(ctx context.Context, recipientID int64, ids []int64) (int64, error)
}
