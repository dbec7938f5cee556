package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	tracecontext "tsync-social/pkg/context"
	"tsync-social/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Event 可推送的事件，EventName为线上的事件名，Payload为data字段
type Event interface {
	EventName() string
	Payload() interface{}
}

// Client 一个在线连接，Send不阻塞，缓冲已满或连接已关闭时返回false
type Client interface {
	ID() string
	Send(frame []byte) bool
}

// envelope 推送帧格式
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Encode 编码为推送帧
func Encode(event Event) ([]byte, error) {
	frame, err := json.Marshal(envelope{Event: event.EventName(), Data: event.Payload()})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.EventName(), err)
	}
	return frame, nil
}

// Router 事件路由，向用户的全部连接扇出推送
type Router struct {
	registry  *Registry
	logger    logger.Logger
	backplane Backplane
	directory Directory
	origin    string

	mu      sync.RWMutex
	clients map[int64]map[string]Client

	publishing sync.WaitGroup
	closed     atomic.Bool
}

// Option 路由选项
type Option func(*Router)

// WithBackplane 多实例部署时通过backplane转发
func WithBackplane(backplane Backplane) Option {
	return func(r *Router) {
		r.backplane = backplane
	}
}

// WithDirectory 在线状态跨实例查询
func WithDirectory(directory Directory) Option {
	return func(r *Router) {
		r.directory = directory
	}
}

// NewRouter 创建路由
func NewRouter(registry *Registry, log logger.Logger, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		logger:   log,
		origin:   uuid.New().String(),
		clients:  make(map[int64]map[string]Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 订阅backplane，未配置时直接返回
func (r *Router) Start(ctx context.Context) error {
	if r.backplane == nil {
		return nil
	}
	if err := r.backplane.Subscribe(ctx, r.handleRemote); err != nil {
		return fmt.Errorf("subscribe backplane: %w", err)
	}
	r.logger.Info(ctx, "Presence backplane subscribed", logger.F("origin", r.origin))
	return nil
}

// Close 等待进行中的发布完成并关闭backplane
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.publishing.Wait()
	if r.backplane != nil {
		return r.backplane.Close()
	}
	return nil
}

// Attach 登记连接，首个连接写入在线目录
func (r *Router) Attach(userID int64, client Client) {
	unlock := r.registry.lockUser(userID)
	defer unlock()

	r.mu.Lock()
	conns, ok := r.clients[userID]
	if !ok {
		conns = make(map[string]Client)
		r.clients[userID] = conns
	}
	conns[client.ID()] = client
	r.registry.RegisterConnection(userID, client.ID())
	r.mu.Unlock()

	if !ok && r.directory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.directory.MarkOnline(ctx, userID); err != nil {
			r.logger.Warn(ctx, "Presence directory update failed", logger.F("user_id", userID), logger.F("error", err))
		}
	}
}

// Detach 移除连接，最后一个连接断开时从在线目录注销
func (r *Router) Detach(userID int64, connID string) {
	unlock := r.registry.lockUser(userID)
	defer unlock()

	r.mu.Lock()
	last := false
	if conns, ok := r.clients[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.clients, userID)
			last = true
		}
	}
	r.registry.UnregisterConnection(userID, connID)
	r.mu.Unlock()

	if last && r.directory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.directory.MarkOffline(ctx, userID); err != nil {
			r.logger.Warn(ctx, "Presence directory update failed", logger.F("user_id", userID), logger.F("error", err))
		}
	}
}

// IsOnline 用户是否在线，本实例没有连接时查询在线目录
func (r *Router) IsOnline(userID int64) bool {
	if r == nil {
		return false
	}
	if r.registry.IsOnline(userID) {
		return true
	}
	if r.directory == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), directoryQuery)
	defer cancel()
	online, err := r.directory.IsOnline(ctx, userID)
	if err != nil {
		r.logger.Warn(ctx, "Presence directory lookup failed", logger.F("user_id", userID), logger.F("error", err))
		return false
	}
	return online
}

// SendToUser 推送给用户的全部连接，尽力而为，不返回错误
func (r *Router) SendToUser(ctx context.Context, userID int64, event Event) {
	if r == nil {
		return
	}
	frame, err := Encode(event)
	if err != nil {
		r.logger.Warn(ctx, "Drop undeliverable event", logger.F("user_id", userID), logger.F("error", err))
		return
	}

	delivered := r.deliver(ctx, r.localClients(userID), frame)
	r.logger.Debug(ctx, "Event pushed",
		logger.F("event", event.EventName()),
		logger.F("user_id", userID),
		logger.F("connections", delivered))

	r.publish(ctx, &Message{UserID: userID, Frame: frame})
}

// Broadcast 推送给所有在线连接
func (r *Router) Broadcast(ctx context.Context, event Event) {
	if r == nil {
		return
	}
	frame, err := Encode(event)
	if err != nil {
		r.logger.Warn(ctx, "Drop undeliverable broadcast", logger.F("error", err))
		return
	}

	r.deliver(ctx, r.allClients(), frame)
	r.publish(ctx, &Message{Broadcast: true, Frame: frame})
}

func (r *Router) localClients(userID int64) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]Client, 0, len(r.clients[userID]))
	for _, c := range r.clients[userID] {
		clients = append(clients, c)
	}
	return clients
}

func (r *Router) allClients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []Client
	for _, conns := range r.clients {
		for _, c := range conns {
			clients = append(clients, c)
		}
	}
	return clients
}

// deliver 入队到各连接，返回成功入队的数量
func (r *Router) deliver(ctx context.Context, clients []Client, frame []byte) int {
	delivered := 0
	for _, c := range clients {
		if c.Send(frame) {
			delivered++
			continue
		}
		r.logger.Warn(ctx, "Client send buffer full, frame dropped", logger.F("conn_id", c.ID()))
	}
	return delivered
}

// publish 异步发布到backplane
func (r *Router) publish(ctx context.Context, msg *Message) {
	if r.backplane == nil || r.closed.Load() {
		return
	}
	msg.Origin = r.origin

	r.publishing.Add(1)
	go func() {
		defer r.publishing.Done()
		ctx, cancel := context.WithTimeout(tracecontext.Detach(ctx), publishTimeout)
		defer cancel()
		if err := r.backplane.Publish(ctx, msg); err != nil {
			r.logger.Warn(ctx, "Backplane publish failed", logger.F("user_id", msg.UserID), logger.F("error", err))
		}
	}()
}

// handleRemote 投递其他实例发布的帧
func (r *Router) handleRemote(msg *Message) {
	if msg.Origin == r.origin {
		return
	}
	ctx := context.Background()
	if msg.Broadcast {
		r.deliver(ctx, r.allClients(), msg.Frame)
		return
	}
	r.deliver(ctx, r.localClients(msg.UserID), msg.Frame)
}
