package model

import (
	"fmt"
	"time"
)

// FriendRequest 好友申请表，同一无序用户对最多一条pending记录
type FriendRequest struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	SenderID   int64     `json:"sender_id" gorm:"not null;index:idx_friend_request_sender"`
	ReceiverID int64     `json:"receiver_id" gorm:"not null;index:idx_friend_request_receiver"`
	Status     string    `json:"status" gorm:"type:varchar(20);not null"`
	PairKey    string    `json:"-" gorm:"type:varchar(64);not null;index:idx_friend_request_pair;uniqueIndex:uniq_friend_request_pending_pair,where:status = 'pending'"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName .
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// PairKey 无序用户对的规范键 "<min>:<max>"
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Friend 好友关系边，每段好友关系两个方向各一行
type Friend struct {
	ID        int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:uniq_friend_user_friend"`
	FriendID  int64     `json:"friend_id" gorm:"not null;uniqueIndex:uniq_friend_user_friend;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName .
func (Friend) TableName() string {
	return "friends"
}

// Block 拉黑关系
type Block struct {
	ID        int64     `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:uniq_block_user_blocked"`
	BlockedID int64     `json:"blocked_id" gorm:"not null;uniqueIndex:uniq_block_user_blocked;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName .
func (Block) TableName() string {
	return "user_blocks"
}

// Notification 通知表，read只能从false变为true
type Notification struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	RecipientID int64     `json:"recipient_id" gorm:"not null;index:idx_notification_recipient_read_created,priority:1" bson:"recipient_id"`
	SenderID    int64     `json:"sender_id" gorm:"not null" bson:"sender_id"`
	Type        string    `json:"type" gorm:"type:varchar(40);not null" bson:"type"`
	Message     string    `json:"message" gorm:"type:text" bson:"message"`
	RelatedID   *int64    `json:"related_id,omitempty" bson:"related_id,omitempty"`
	RelatedKind string    `json:"related_kind,omitempty" gorm:"type:varchar(20)" bson:"related_kind,omitempty"`
	Read        bool      `json:"read" gorm:"not null;default:false;index:idx_notification_recipient_read_created,priority:2" bson:"read"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;index:idx_notification_recipient_read_created,priority:3" bson:"created_at"`
}

// TableName .
func (Notification) TableName() string {
	return "notifications"
}

// RequestExistence 用户对之间的申请状态
type RequestExistence struct {
	Exists    bool   `json:"exists"`
	RequestID int64  `json:"request_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Direction string `json:"direction,omitempty"` // 相对于查询方：sent | received
}

// CreateNotificationInput 创建通知参数
type CreateNotificationInput struct {
	RecipientID int64
	SenderID    int64
	Type        string
	Message     string
	RelatedID   *int64
	RelatedKind string
}

// NotificationQuery 通知分页查询
type NotificationQuery struct {
	RecipientID int64
	Read        *bool // nil表示不过滤
	Offset      int
	Limit       int
}

// ListQuery 通知列表参数
type ListQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// Normalize 补全分页默认值
func (q ListQuery) Normalize(defaultLimit, maxLimit int) ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

// NotificationPage 通知分页结果
type NotificationPage struct {
	Items       []*Notification `json:"items"`
	Total       int64           `json:"total"`
	UnreadCount int64           `json:"unread_count"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
}

// EventScheduled 外部日程事件
type EventScheduled struct {
	EventID     int64     `json:"event_id"`
	Title       string    `json:"title"`
	OrganizerID int64     `json:"organizer_id"`
	AttendeeIDs []int64   `json:"attendee_ids"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}
