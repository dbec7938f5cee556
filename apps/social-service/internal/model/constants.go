package model

// 好友申请状态
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRejected = "rejected"
)

// 申请方向，相对于查询方
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// 通知类型
const (
	NotificationFriendRequestReceived = "FRIEND_REQUEST_RECEIVED"
	NotificationFriendAccepted        = "FRIEND_ACCEPTED"
	NotificationFriendRejected        = "FRIEND_REJECTED"
	NotificationFriendRemoved         = "FRIEND_REMOVED"
	NotificationFriendRequestCanceled = "FRIEND_REQUEST_CANCELED"
	NotificationEventScheduled        = "EVENT_SCHEDULED"
)

// 通知关联对象类型
const (
	RelatedKindFriendRequest = "FriendRequest"
	RelatedKindUser          = "User"
	RelatedKindEvent         = "Event"
)

// 推送事件名
const (
	EventNotification   = "notification"
	EventEventScheduled = "event_scheduled"
)

// 通知列表默认过滤
const (
	NotificationFilterRead = "read" // 未指定unreadOnly时只返回已读
	NotificationFilterAll  = "all"
)

// 分页默认值
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ValidateRequestStatus 校验申请状态，空字符串表示不过滤
func ValidateRequestStatus(status string) bool {
	switch status {
	case "", RequestStatusPending, RequestStatusAccepted, RequestStatusRejected:
		return true
	}
	return false
}

// ValidateNotificationType 校验通知类型
func ValidateNotificationType(t string) bool {
	switch t {
	case NotificationFriendRequestReceived, NotificationFriendAccepted, NotificationFriendRejected,
		NotificationFriendRemoved, NotificationFriendRequestCanceled, NotificationEventScheduled:
		return true
	}
	return false
}
