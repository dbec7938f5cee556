package handler

import "tsync-social/apps/social-service/internal/model"

// SendFriendRequestBody 发送好友申请
type SendFriendRequestBody struct {
	ReceiverID int64 `json:"receiver_id" binding:"required,gt=0"`
}

// NotificationIDsBody 通知ID列表
type NotificationIDsBody struct {
	IDs []int64 `json:"ids"`
}

// NotificationListParams 通知列表查询参数
type NotificationListParams struct {
	Page       int  `form:"page"`
	Limit      int  `form:"limit"`
	UnreadOnly bool `form:"unread_only"`
}

// FriendRequestResponse 单个申请
type FriendRequestResponse struct {
	Request *model.FriendRequest `json:"request"`
}

// FriendRequestListResponse 申请列表
type FriendRequestListResponse struct {
	Requests []*model.FriendRequest `json:"requests"`
}

// FriendListResponse 好友列表
type FriendListResponse struct {
	Friends []*model.Friend `json:"friends"`
}

// BlockListResponse 拉黑列表
type BlockListResponse struct {
	Blocked []*model.Block `json:"blocked"`
}

// SuccessResponse 无返回数据的操作
type SuccessResponse struct {
	Success bool `json:"success"`
}

// UnreadCountResponse 未读数
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// DeleteResponse 删除数量
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// PresenceResponse 在线状态，键为用户ID
type PresenceResponse struct {
	Online map[string]bool `json:"online"`
}
