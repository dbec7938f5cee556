package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"tsync-social/pkg/logger"
	"tsync-social/pkg/redis"
)

// Message backplane上传递的帧
type Message struct {
	Origin    string          `json:"origin"`
	UserID    int64           `json:"user_id,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// Backplane 跨实例转发推送帧
type Backplane interface {
	Publish(ctx context.Context, msg *Message) error
	// Subscribe 确认订阅后返回，之后在后台回调handler
	Subscribe(ctx context.Context, handler func(*Message)) error
	Close() error
}

// RedisBackplane 基于Redis Pub/Sub的backplane
type RedisBackplane struct {
	client  *redis.RedisClient
	channel string
	logger  logger.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBackplane 创建Redis backplane
func NewRedisBackplane(client *redis.RedisClient, channel string, log logger.Logger) *RedisBackplane {
	return &RedisBackplane{
		client:  client,
		channel: channel,
		logger:  log,
	}
}

// Publish 发布帧
func (b *RedisBackplane) Publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal backplane message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe 订阅频道
func (b *RedisBackplane) Subscribe(ctx context.Context, handler func(*Message)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	ch := pubsub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.logger.Warn(ctx, "Invalid backplane message", logger.F("error", err))
					continue
				}
				handler(&msg)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Close 取消订阅
func (b *RedisBackplane) Close() error {
	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	var err error
	if pubsub != nil {
		err = pubsub.Close()
	}
	b.wg.Wait()
	return err
}
