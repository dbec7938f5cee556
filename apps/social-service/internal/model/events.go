package model

// DomainEvent 领域事件，封闭集合，只能由本包的类型实现
type DomainEvent interface {
	EventName() string
	Payload() interface{}
	RecipientID() int64
	ActorID() int64
	domainEvent()
}

// RelationshipEvent 关系状态变化事件，每个都会生成一条通知
type RelationshipEvent interface {
	DomainEvent
	Notification() CreateNotificationInput
}

func requestRelated(r *FriendRequest) *int64 {
	id := r.ID
	return &id
}

// FriendRequestReceived 收到好友申请，发给接收方
type FriendRequestReceived struct {
	Request *FriendRequest
}

func (FriendRequestReceived) domainEvent()           {}
func (FriendRequestReceived) EventName() string      { return NotificationFriendRequestReceived }
func (e FriendRequestReceived) Payload() interface{} { return e.Request }
func (e FriendRequestReceived) RecipientID() int64   { return e.Request.ReceiverID }
func (e FriendRequestReceived) ActorID() int64       { return e.Request.SenderID }

// Notification 对应的通知
func (e FriendRequestReceived) Notification() CreateNotificationInput {
	return CreateNotificationInput{
		RecipientID: e.Request.ReceiverID,
		SenderID:    e.Request.SenderID,
		Type:        NotificationFriendRequestReceived,
		Message:     "You have a new friend request",
		RelatedID:   requestRelated(e.Request),
		RelatedKind: RelatedKindFriendRequest,
	}
}

// FriendAccepted 申请被接受，发给申请方
type FriendAccepted struct {
	Request *FriendRequest
}

func (FriendAccepted) domainEvent()           {}
func (FriendAccepted) EventName() string      { return NotificationFriendAccepted }
func (e FriendAccepted) Payload() interface{} { return e.Request }
func (e FriendAccepted) RecipientID() int64   { return e.Request.SenderID }
func (e FriendAccepted) ActorID() int64       { return e.Request.ReceiverID }

// Notification 对应的通知
func (e FriendAccepted) Notification() CreateNotificationInput {
	return CreateNotificationInput{
		RecipientID: e.Request.SenderID,
		SenderID:    e.Request.ReceiverID,
		Type:        NotificationFriendAccepted,
		Message:     "Your friend request was accepted",
		RelatedID:   requestRelated(e.Request),
		RelatedKind: RelatedKindFriendRequest,
	}
}

// FriendRejected 申请被拒绝，发给申请方
type FriendRejected struct {
	Request *FriendRequest
}

func (FriendRejected) domainEvent()           {}
func (FriendRejected) EventName() string      { return NotificationFriendRejected }
func (e FriendRejected) Payload() interface{} { return e.Request }
func (e FriendRejected) RecipientID() int64   { return e.Request.SenderID }
func (e FriendRejected) ActorID() int64       { return e.Request.ReceiverID }

// Notification 对应的通知
func (e FriendRejected) Notification() CreateNotificationInput {
	return CreateNotificationInput{
		RecipientID: e.Request.SenderID,
		SenderID:    e.Request.ReceiverID,
		Type:        NotificationFriendRejected,
		Message:     "Your friend request was declined",
		RelatedID:   requestRelated(e.Request),
		RelatedKind: RelatedKindFriendRequest,
	}
}

// FriendRequestCanceled 申请被撤回，发给接收方，记录已删除
type FriendRequestCanceled struct {
	Request *FriendRequest
}

func (FriendRequestCanceled) domainEvent()           {}
func (FriendRequestCanceled) EventName() string      { return NotificationFriendRequestCanceled }
func (e FriendRequestCanceled) Payload() interface{} { return e.Request }
func (e FriendRequestCanceled) RecipientID() int64   { return e.Request.ReceiverID }
func (e FriendRequestCanceled) ActorID() int64       { return e.Request.SenderID }

// Notification 对应的通知，关联到撤回方用户
func (e FriendRequestCanceled) Notification() CreateNotificationInput {
	sender := e.Request.SenderID
	return CreateNotificationInput{
		RecipientID: e.Request.ReceiverID,
		SenderID:    e.Request.SenderID,
		Type:        NotificationFriendRequestCanceled,
		Message:     "A friend request to you was canceled",
		RelatedID:   &sender,
		RelatedKind: RelatedKindUser,
	}
}

// Unfriended 解除好友的载荷
type Unfriended struct {
	UserID   int64 `json:"user_id"`
	FriendID int64 `json:"friend_id"`
}

// FriendRemoved 被解除好友，发给被移除方
type FriendRemoved struct {
	UserID   int64
	FriendID int64
}

func (FriendRemoved) domainEvent()           {}
func (FriendRemoved) EventName() string      { return NotificationFriendRemoved }
func (e FriendRemoved) Payload() interface{} { return Unfriended{UserID: e.UserID, FriendID: e.FriendID} }
func (e FriendRemoved) RecipientID() int64   { return e.FriendID }
func (e FriendRemoved) ActorID() int64       { return e.UserID }

// Notification 对应的通知
func (e FriendRemoved) Notification() CreateNotificationInput {
	userID := e.UserID
	return CreateNotificationInput{
		RecipientID: e.FriendID,
		SenderID:    e.UserID,
		Type:        NotificationFriendRemoved,
		Message:     "A friend removed you",
		RelatedID:   &userID,
		RelatedKind: RelatedKindUser,
	}
}

// NotificationCreated 通知推送，载荷为完整通知记录
type NotificationCreated struct {
	Notification *Notification
}

func (NotificationCreated) domainEvent()           {}
func (NotificationCreated) EventName() string      { return EventNotification }
func (e NotificationCreated) Payload() interface{} { return e.Notification }
func (e NotificationCreated) RecipientID() int64   { return e.Notification.RecipientID }
func (e NotificationCreated) ActorID() int64       { return e.Notification.SenderID }

// EventScheduledPush 日程推送，发给单个参与者
type EventScheduledPush struct {
	Event      *EventScheduled
	AttendeeID int64
}

func (EventScheduledPush) domainEvent()           {}
func (EventScheduledPush) EventName() string      { return EventEventScheduled }
func (e EventScheduledPush) Payload() interface{} { return e.Event }
func (e EventScheduledPush) RecipientID() int64   { return e.AttendeeID }
func (e EventScheduledPush) ActorID() int64       { return e.Event.OrganizerID }
