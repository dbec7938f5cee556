package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tsync-social/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var pongFrame = []byte(`{"event":"pong","data":null}`)

// WSClient WebSocket连接，单写协程串行写入，读循环负责感知断开
type WSClient struct {
	id           string
	userID       int64
	conn         *websocket.Conn
	send         chan []byte
	pingInterval time.Duration
	logger       logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewWSClient 创建连接客户端
func NewWSClient(conn *websocket.Conn, userID int64, bufferSize int, pingInterval time.Duration, log logger.Logger) *WSClient {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &WSClient{
		id:           uuid.New().String(),
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		pingInterval: pingInterval,
		logger:       log,
		done:         make(chan struct{}),
	}
}

// ID 连接ID
func (c *WSClient) ID() string {
	return c.id
}

// UserID 连接所属用户
func (c *WSClient) UserID() int64 {
	return c.userID
}

// Send 非阻塞入队
func (c *WSClient) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close 通知写协程发送关闭帧并退出
func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run 运行读写循环，阻塞直到连接断开或ctx取消
func (c *WSClient) Run(ctx context.Context) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()

	c.readPump(ctx)
	c.Close()
	<-writerDone
}

// readPump 读取客户端消息，读取出错即视为断开
func (c *WSClient) readPump(ctx context.Context) {
	pongWait := 2 * c.pingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(ctx, "WebSocket read failed", logger.F("conn_id", c.id), logger.F("error", err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &msg); err == nil && msg.Event == "ping" {
			c.Send(pongFrame)
		}
	}
}

// writePump 唯一的写协程，退出时关闭底层连接以唤醒读循环
func (c *WSClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug(ctx, "WebSocket write failed", logger.F("conn_id", c.id), logger.F("error", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.writeClose()
			return
		case <-ctx.Done():
			c.writeClose()
			return
		}
	}
}

func (c *WSClient) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
