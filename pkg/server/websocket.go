package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// WebSocketHandler WebSocket处理器接口，HandleConnection阻塞直到连接结束
type WebSocketHandler interface {
	HandleConnection(ctx context.Context, conn *websocket.Conn)
}

// WebSocketHandlerFunc WebSocket处理器函数类型
type WebSocketHandlerFunc func(ctx context.Context, conn *websocket.Conn)

// HandleConnection WebSocketHandler接口实现
func (f WebSocketHandlerFunc) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	f(ctx, conn)
}

// WebSocketServerWrapper 管理升级后的连接，停止时统一关闭
type WebSocketServerWrapper struct {
	upgrader websocket.Upgrader
	logger   kratoslog.Logger
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closed   bool
}

// NewWebSocketServerWrapper 创建WebSocket服务器包装器
func NewWebSocketServerWrapper(logger kratoslog.Logger) *WebSocketServerWrapper {
	return &WebSocketServerWrapper{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Serve 升级连接并交给处理器，处理器返回后关闭连接
func (ws *WebSocketServerWrapper) Serve(c *gin.Context, handler WebSocketHandler) {
	conn, err := ws.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ws.logger.Log(kratoslog.LevelError, "msg", "WebSocket upgrade failed", "error", err)
		return
	}
	if !ws.track(conn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer func() {
		ws.untrack(conn)
		_ = conn.Close()
	}()

	handler.HandleConnection(c.Request.Context(), conn)
}

// ActiveConnections 当前连接数
func (ws *WebSocketServerWrapper) ActiveConnections() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.conns)
}

func (ws *WebSocketServerWrapper) track(conn *websocket.Conn) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return false
	}
	ws.conns[conn] = struct{}{}
	return true
}

func (ws *WebSocketServerWrapper) untrack(conn *websocket.Conn) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.conns, conn)
}

// Start WebSocket依赖HTTP服务器，这里只记录日志
func (ws *WebSocketServerWrapper) Start(ctx context.Context) error {
	ws.logger.Log(kratoslog.LevelInfo, "msg", "WebSocket server ready")
	return nil
}

// Stop 向所有连接发送关闭帧
func (ws *WebSocketServerWrapper) Stop(ctx context.Context) error {
	ws.mu.Lock()
	ws.closed = true
	conns := make([]*websocket.Conn, 0, len(ws.conns))
	for conn := range ws.conns {
		conns = append(conns, conn)
	}
	ws.mu.Unlock()

	ws.logger.Log(kratoslog.LevelInfo, "msg", "WebSocket server stopping", "connections", len(conns))
	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	}
	return nil
}
