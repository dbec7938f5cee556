package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsync-social/pkg/logger"
	"tsync-social/pkg/redis"
)

func newDirectoryRouter(t *testing.T, addr string) (*Router, *RedisDirectory) {
	t.Helper()
	client := redis.NewRedisClient(addr, "", 0)
	t.Cleanup(func() { _ = client.Close() })

	registry := NewRegistry()
	directory := NewRedisDirectory(client, registry, logger.NewNop())
	return NewRouter(registry, logger.NewNop(), WithDirectory(directory)), directory
}

func TestRedisDirectory_OnlineAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	instanceA, _ := newDirectoryRouter(t, mr.Addr())
	instanceB, _ := newDirectoryRouter(t, mr.Addr())

	instanceA.Attach(7, newFakeClient("a1"))
	instanceA.Attach(7, newFakeClient("a2"))
	assert.True(t, instanceB.IsOnline(7))
	assert.False(t, instanceB.IsOnline(8))

	instanceA.Detach(7, "a1")
	assert.True(t, instanceB.IsOnline(7))

	instanceA.Detach(7, "a2")
	assert.False(t, instanceB.IsOnline(7))
}

func TestRedisDirectory_StaleHeartbeatIsOffline(t *testing.T) {
	mr := miniredis.RunT(t)
	router, directory := newDirectoryRouter(t, mr.Addr())

	stale := time.Now().Add(-2 * HeartbeatWindow)
	directory.now = func() time.Time { return stale }
	router.Attach(3, newFakeClient("c"))

	directory.now = time.Now
	online, err := directory.IsOnline(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, online)

	// 本实例的连接不依赖目录
	assert.True(t, router.IsOnline(3))
}

func TestRedisDirectory_StopUnregistersLocalUsers(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	router, directory := newDirectoryRouter(t, mr.Addr())
	other, _ := newDirectoryRouter(t, mr.Addr())

	router.Attach(11, newFakeClient("x"))
	require.NoError(t, directory.Start(ctx))
	assert.True(t, other.IsOnline(11))

	require.NoError(t, directory.Stop(ctx))
	assert.False(t, other.IsOnline(11))
	require.NoError(t, directory.Stop(ctx))
}

func TestRouter_DirectoryUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	router, _ := newDirectoryRouter(t, mr.Addr())
	mr.Close()

	router.Attach(4, newFakeClient("d"))
	assert.True(t, router.IsOnline(4))
	assert.False(t, router.IsOnline(5))
}

func TestRedisDirectory_HeartbeatDoesNotReviveDetachedUser(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	router, directory := newDirectoryRouter(t, mr.Addr())
	other, _ := newDirectoryRouter(t, mr.Addr())

	router.Attach(7, newFakeClient("a1"))
	snapshot := directory.registry.OnlineUsers()
	router.Detach(7, "a1")

	require.NoError(t, directory.refresh(ctx, snapshot))
	assert.False(t, router.IsOnline(7))
	assert.False(t, other.IsOnline(7))
}

func TestRedisDirectory_RefreshKeepsOnlineUsers(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	router, directory := newDirectoryRouter(t, mr.Addr())
	other, _ := newDirectoryRouter(t, mr.Addr())

	router.Attach(8, newFakeClient("b1"))
	require.NoError(t, directory.refresh(ctx, directory.registry.OnlineUsers()))
	assert.True(t, other.IsOnline(8))
}

// gatedDirectory 记录写入顺序，MarkOnline在gate关闭前阻塞
type gatedDirectory struct {
	mu      sync.Mutex
	calls   []string
	entered chan struct{}
	gate    chan struct{}
}

func (d *gatedDirectory) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *gatedDirectory) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *gatedDirectory) MarkOnline(_ context.Context, _ int64) error {
	close(d.entered)
	<-d.gate
	d.record("online")
	return nil
}

func (d *gatedDirectory) MarkOffline(_ context.Context, _ int64) error {
	d.record("offline")
	return nil
}

func (d *gatedDirectory) IsOnline(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

func TestRouter_DirectoryWritesFollowConnectionOrder(t *testing.T) {
	directory := &gatedDirectory{entered: make(chan struct{}), gate: make(chan struct{})}
	router := NewRouter(NewRegistry(), logger.NewNop(), WithDirectory(directory))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		router.Attach(9, newFakeClient("c1"))
	}()
	<-directory.entered

	go func() {
		defer wg.Done()
		router.Detach(9, "c1")
	}()
	assert.Never(t, func() bool { return len(directory.recorded()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(directory.gate)
	wg.Wait()
	assert.Equal(t, []string{"online", "offline"}, directory.recorded())
	assert.False(t, router.IsOnline(9))
}
