package presence

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tsync-social/pkg/logger"
	"tsync-social/pkg/redis"
)

const (
	// HeartbeatInterval 本地在线用户的续期间隔
	HeartbeatInterval = 15 * time.Second
	// HeartbeatWindow 超过该时间未续期的实例视为离线
	HeartbeatWindow = 45 * time.Second

	userKeyFmt     = "presence:user:%d"
	directoryTTL   = HeartbeatWindow + 30*time.Second
	directoryQuery = 500 * time.Millisecond
)

// Directory 跨实例的在线目录
type Directory interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64) error
	IsOnline(ctx context.Context, userID int64) (bool, error)
}

// RedisDirectory 每个用户一个ZSET，成员为持有其连接的实例，分数为最近心跳时间
type RedisDirectory struct {
	redis      *redis.RedisClient
	instanceID string
	registry   *Registry
	logger     logger.Logger
	now        func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRedisDirectory 创建在线目录，registry提供本实例的在线用户
func NewRedisDirectory(client *redis.RedisClient, registry *Registry, log logger.Logger) *RedisDirectory {
	return &RedisDirectory{
		redis:      client,
		instanceID: uuid.New().String(),
		registry:   registry,
		logger:     log,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

func userKey(userID int64) string {
	return fmt.Sprintf(userKeyFmt, userID)
}

// InstanceID 本实例ID
func (d *RedisDirectory) InstanceID() string {
	return d.instanceID
}

// MarkOnline 记录本实例持有该用户的连接
func (d *RedisDirectory) MarkOnline(ctx context.Context, userID int64) error {
	return d.touch(ctx, []int64{userID})
}

// touch 批量续期
func (d *RedisDirectory) touch(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	score := float64(d.now().Unix())
	pipe := d.redis.GetClient().Pipeline()
	for _, userID := range userIDs {
		key := userKey(userID)
		pipe.ZAdd(ctx, key, &goredis.Z{Score: score, Member: d.instanceID})
		pipe.Expire(ctx, key, directoryTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// refresh 心跳续期，续期期间已全部断开的用户随即注销
func (d *RedisDirectory) refresh(ctx context.Context, userIDs []int64) error {
	if err := d.touch(ctx, userIDs); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if err := d.dropIfOffline(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// dropIfOffline 持有用户锁复查本地状态，避免心跳覆盖已完成的注销
func (d *RedisDirectory) dropIfOffline(ctx context.Context, userID int64) error {
	unlock := d.registry.lockUser(userID)
	defer unlock()

	if d.registry.IsOnline(userID) {
		return nil
	}
	return d.MarkOffline(ctx, userID)
}

// MarkOffline 本实例不再持有该用户的连接
func (d *RedisDirectory) MarkOffline(ctx context.Context, userID int64) error {
	if err := d.redis.GetClient().ZRem(ctx, userKey(userID), d.instanceID).Err(); err != nil {
		return fmt.Errorf("presence offline: %w", err)
	}
	return nil
}

// IsOnline 任一实例在心跳窗口内续期过即为在线
func (d *RedisDirectory) IsOnline(ctx context.Context, userID int64) (bool, error) {
	since := strconv.FormatInt(d.now().Add(-HeartbeatWindow).Unix(), 10)
	n, err := d.redis.GetClient().ZCount(ctx, userKey(userID), since, "+inf").Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return n > 0, nil
}

// Start 启动心跳循环
func (d *RedisDirectory) Start(ctx context.Context) error {
	if err := d.refresh(ctx, d.registry.OnlineUsers()); err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hbCtx, cancel := context.WithTimeout(context.Background(), HeartbeatInterval)
				if err := d.refresh(hbCtx, d.registry.OnlineUsers()); err != nil {
					d.logger.Warn(hbCtx, "Presence heartbeat failed", logger.F("error", err))
				}
				cancel()
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	d.logger.Info(ctx, "Presence directory started", logger.F("instance_id", d.instanceID))
	return nil
}

// Stop 停止心跳并注销本实例持有的用户
func (d *RedisDirectory) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()

	users := d.registry.OnlineUsers()
	if len(users) == 0 {
		return nil
	}
	pipe := d.redis.GetClient().Pipeline()
	for _, userID := range users {
		pipe.ZRem(ctx, userKey(userID), d.instanceID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence unregister: %w", err)
	}
	return nil
}
