package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tsync-social/apps/social-service/internal/model"
	tracecontext "tsync-social/pkg/context"
	"tsync-social/pkg/httpx"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/presence"
	"tsync-social/pkg/server"
)

const maxPresenceQuery = 100

// Connect 建立WebSocket连接，连接存续期间用户在线
func (h *HTTPHandler) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	h.ws.Serve(c, server.WebSocketHandlerFunc(func(ctx context.Context, conn *websocket.Conn) {
		client := presence.NewWSClient(conn, userID, h.wsOpts.SendBuffer, h.wsOpts.PingInterval, h.logger)
		ctx = tracecontext.WithConnID(ctx, client.ID())

		h.router.Attach(userID, client)
		defer h.router.Detach(userID, client.ID())

		h.logger.Info(ctx, "WebSocket connected", logger.F("user_id", userID))
		client.Run(ctx)
		h.logger.Info(ctx, "WebSocket disconnected", logger.F("user_id", userID))
	}))
}

// GetPresence 查询用户在本实例的在线状态
func (h *HTTPHandler) GetPresence(c *gin.Context) {
	ctx := c.Request.Context()
	if _, ok := currentUser(c); !ok {
		return
	}

	ids, err := parseUserIDs(c.Query("user_ids"))
	if err != nil {
		h.fail(ctx, c, "Invalid presence query", err)
		return
	}

	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		online[strconv.FormatInt(id, 10)] = h.router.IsOnline(id)
	}
	httpx.WriteObject(c, http.StatusOK, PresenceResponse{Online: online})
}

// parseUserIDs 解析逗号分隔的用户ID
func parseUserIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, model.InvalidArgument("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, model.InvalidArgument("user_ids is required")
	}
	if len(ids) > maxPresenceQuery {
		return nil, model.InvalidArgument("at most %d user ids per query", maxPresenceQuery)
	}
	return ids, nil
}
