package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/apps/social-service/internal/service"
	"tsync-social/pkg/httpx"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/middleware"
	"tsync-social/pkg/presence"
	"tsync-social/pkg/server"
)

// WebSocketOptions 连接参数
type WebSocketOptions struct {
	SendBuffer   int
	PingInterval time.Duration
}

// HTTPHandler HTTP处理器
type HTTPHandler struct {
	relationships *service.RelationshipService
	notifications *service.NotificationService
	router        *presence.Router
	ws            *server.WebSocketServerWrapper
	wsOpts        WebSocketOptions
	logger        logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(
	relationships *service.RelationshipService,
	notifications *service.NotificationService,
	router *presence.Router,
	ws *server.WebSocketServerWrapper,
	wsOpts WebSocketOptions,
	log logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		relationships: relationships,
		notifications: notifications,
		router:        router,
		ws:            ws,
		wsOpts:        wsOpts,
		logger:        log,
	}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	social := engine.Group("/api/v1/social")

	// 好友申请与好友关系
	friend := social.Group("/friend")
	{
		friend.POST("/request", h.SendFriendRequest)
		friend.POST("/request/:id/accept", h.AcceptFriendRequest)
		friend.POST("/request/:id/reject", h.RejectFriendRequest)
		friend.DELETE("/request/:id", h.CancelFriendRequest)
		friend.GET("/request/check/:user_id", h.CheckFriendRequest)
		friend.GET("/request/pending", h.GetPendingRequests)
		friend.GET("/request/sent", h.GetSentRequests)
		friend.GET("/request/received", h.GetReceivedRequests)
		friend.GET("/list", h.GetFriendList)
		friend.DELETE("/:friend_id", h.RemoveFriend)
	}

	block := social.Group("/block")
	{
		block.POST("/:user_id", h.BlockUser)
		block.DELETE("/:user_id", h.UnblockUser)
		block.GET("/list", h.GetBlockList)
	}

	notification := social.Group("/notifications")
	{
		notification.GET("", h.GetNotifications)
		notification.POST("/read", h.MarkNotificationsRead)
		notification.DELETE("", h.DeleteNotifications)
		notification.GET("/unread_count", h.GetUnreadCount)
	}

	social.GET("/presence", h.GetPresence)
	social.GET("/ws", h.Connect)
}

// currentUser 已认证用户，未认证时直接写401
func currentUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		httpx.WriteStatusError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return 0, false
	}
	return userID, true
}

// pathID 解析路径中的正整数ID
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.InvalidArgument("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

// fail 记录日志并写错误响应，5xx记为error，其余记为warn
func (h *HTTPHandler) fail(ctx context.Context, c *gin.Context, msg string, err error, fields ...logger.Field) {
	fields = append(fields, logger.F("error", err.Error()), logger.F("code", string(model.CodeOf(err))))
	if model.CodeOf(err) == model.CodeInternal {
		h.logger.Error(ctx, msg, fields...)
	} else {
		h.logger.Warn(ctx, msg, fields...)
	}
	httpx.WriteError(c, err)
}
