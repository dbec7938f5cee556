package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/httpx"
	"tsync-social/pkg/logger"
)

// SendFriendRequest 发送好友申请
func (h *HTTPHandler) SendFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body SendFriendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(ctx, c, "Invalid send friend request", model.InvalidArgument("invalid request body: %v", err))
		return
	}

	req, err := h.relationships.SendRequest(ctx, userID, body.ReceiverID)
	if err != nil {
		h.fail(ctx, c, "Send friend request failed", err, logger.F("receiver_id", body.ReceiverID))
		return
	}
	httpx.WriteObject(c, http.StatusCreated, FriendRequestResponse{Request: req})
}

// AcceptFriendRequest 接受好友申请
func (h *HTTPHandler) AcceptFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		h.fail(ctx, c, "Invalid accept friend request", err)
		return
	}

	req, err := h.relationships.AcceptRequest(ctx, userID, requestID)
	if err != nil {
		h.fail(ctx, c, "Accept friend request failed", err, logger.F("request_id", requestID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, FriendRequestResponse{Request: req})
}

// RejectFriendRequest 拒绝好友申请
func (h *HTTPHandler) RejectFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		h.fail(ctx, c, "Invalid reject friend request", err)
		return
	}

	req, err := h.relationships.RejectRequest(ctx, userID, requestID)
	if err != nil {
		h.fail(ctx, c, "Reject friend request failed", err, logger.F("request_id", requestID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, FriendRequestResponse{Request: req})
}

// CancelFriendRequest 撤回好友申请
func (h *HTTPHandler) CancelFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, err := pathID(c, "id")
	if err != nil {
		h.fail(ctx, c, "Invalid cancel friend request", err)
		return
	}

	if err := h.relationships.CancelRequest(ctx, userID, requestID); err != nil {
		h.fail(ctx, c, "Cancel friend request failed", err, logger.F("request_id", requestID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, SuccessResponse{Success: true})
}

// CheckFriendRequest 查询与某用户之间的申请
func (h *HTTPHandler) CheckFriendRequest(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, err := pathID(c, "user_id")
	if err != nil {
		h.fail(ctx, c, "Invalid check friend request", err)
		return
	}

	existence, err := h.relationships.CheckExists(ctx, userID, otherID)
	if err != nil {
		h.fail(ctx, c, "Check friend request failed", err, logger.F("other_id", otherID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, existence)
}

// GetPendingRequests 待处理的申请
func (h *HTTPHandler) GetPendingRequests(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.relationships.GetPending(ctx, userID)
	if err != nil {
		h.fail(ctx, c, "Get pending requests failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, FriendRequestListResponse{Requests: nonNil(reqs)})
}

// GetSentRequests 发出的申请，可按status过滤
func (h *HTTPHandler) GetSentRequests(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.relationships.GetSent(ctx, userID, c.Query("status"))
	if err != nil {
		h.fail(ctx, c, "Get sent requests failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, FriendRequestListResponse{Requests: nonNil(reqs)})
}

// GetReceivedRequests 收到的申请，可按status过滤
func (h *HTTPHandler) GetReceivedRequests(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	reqs, err := h.relationships.GetReceived(ctx, userID, c.Query("status"))
	if err != nil {
		h.fail(ctx, c, "Get received requests failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, FriendRequestListResponse{Requests: nonNil(reqs)})
}

// GetFriendList 好友列表
func (h *HTTPHandler) GetFriendList(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	friends, err := h.relationships.GetFriends(ctx, userID)
	if err != nil {
		h.fail(ctx, c, "Get friend list failed", err)
		return
	}
	if friends == nil {
		friends = []*model.Friend{}
	}
	httpx.WriteObject(c, http.StatusOK, FriendListResponse{Friends: friends})
}

// RemoveFriend 解除好友
func (h *HTTPHandler) RemoveFriend(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	friendID, err := pathID(c, "friend_id")
	if err != nil {
		h.fail(ctx, c, "Invalid remove friend", err)
		return
	}

	if err := h.relationships.RemoveFriend(ctx, userID, friendID); err != nil {
		h.fail(ctx, c, "Remove friend failed", err, logger.F("friend_id", friendID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, SuccessResponse{Success: true})
}

// BlockUser 拉黑
func (h *HTTPHandler) BlockUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, err := pathID(c, "user_id")
	if err != nil {
		h.fail(ctx, c, "Invalid block user", err)
		return
	}

	if err := h.relationships.BlockUser(ctx, userID, targetID); err != nil {
		h.fail(ctx, c, "Block user failed", err, logger.F("target_id", targetID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, SuccessResponse{Success: true})
}

// UnblockUser 取消拉黑
func (h *HTTPHandler) UnblockUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, err := pathID(c, "user_id")
	if err != nil {
		h.fail(ctx, c, "Invalid unblock user", err)
		return
	}

	if err := h.relationships.UnblockUser(ctx, userID, targetID); err != nil {
		h.fail(ctx, c, "Unblock user failed", err, logger.F("target_id", targetID))
		return
	}
	httpx.WriteObject(c, http.StatusOK, SuccessResponse{Success: true})
}

// GetBlockList 拉黑列表
func (h *HTTPHandler) GetBlockList(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	blocked, err := h.relationships.ListBlocked(ctx, userID)
	if err != nil {
		h.fail(ctx, c, "Get block list failed", err)
		return
	}
	if blocked == nil {
		blocked = []*model.Block{}
	}
	httpx.WriteObject(c, http.StatusOK, BlockListResponse{Blocked: blocked})
}

func nonNil(reqs []*model.FriendRequest) []*model.FriendRequest {
	if reqs == nil {
		return []*model.FriendRequest{}
	}
	return reqs
}
