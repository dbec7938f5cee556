package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/httpx"
)

// GetNotifications 通知列表
func (h *HTTPHandler) GetNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var params NotificationListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.fail(ctx, c, "Invalid notification query", model.InvalidArgument("invalid query: %v", err))
		return
	}

	page, err := h.notifications.GetUserNotifications(ctx, userID, model.ListQuery{
		Page:       params.Page,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		h.fail(ctx, c, "Get notifications failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, page)
}

// MarkNotificationsRead 标记已读，ids为空时全部标记
func (h *HTTPHandler) MarkNotificationsRead(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body NotificationIDsBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.fail(ctx, c, "Invalid mark read request", model.InvalidArgument("invalid request body: %v", err))
		return
	}

	unread, err := h.notifications.MarkAsRead(ctx, userID, body.IDs)
	if err != nil {
		h.fail(ctx, c, "Mark notifications read failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, UnreadCountResponse{UnreadCount: unread})
}

// DeleteNotifications 删除通知
func (h *HTTPHandler) DeleteNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body NotificationIDsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.fail(ctx, c, "Invalid delete notifications request", model.InvalidArgument("invalid request body: %v", err))
		return
	}

	deleted, err := h.notifications.DeleteNotifications(ctx, userID, body.IDs)
	if err != nil {
		h.fail(ctx, c, "Delete notifications failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// GetUnreadCount 未读数
func (h *HTTPHandler) GetUnreadCount(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.notifications.GetUnreadCount(ctx, userID)
	if err != nil {
		h.fail(ctx, c, "Get unread count failed", err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, UnreadCountResponse{UnreadCount: count})
}
