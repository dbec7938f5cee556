package presence

import (
	"sort"
	"sync"
)

const userLockStripes = 64

// Registry 在线状态注册表，记录用户当前的连接集合，不做持久化
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[string]struct{}

	// 同一用户的连接变更与在线目录写入按stripe串行
	stripes [userLockStripes]sync.Mutex
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]map[string]struct{})}
}

// lockUser 锁定用户所在的stripe，返回解锁函数
func (r *Registry) lockUser(userID int64) func() {
	m := &r.stripes[uint64(userID)%userLockStripes]
	m.Lock()
	return m.Unlock
}

// RegisterConnection 登记连接，首次连接时创建集合
func (r *Registry) RegisterConnection(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.users[userID] = conns
	}
	conns[connID] = struct{}{}
}

// UnregisterConnection 移除连接，集合为空时删除用户条目
func (r *Registry) UnregisterConnection(userID int64, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
}

// IsOnline 用户是否至少有一个连接
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Connections 用户当前的连接ID，按字典序
func (r *Registry) Connections(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.users[userID]))
	for connID := range r.users[userID] {
		conns = append(conns, connID)
	}
	sort.Strings(conns)
	return conns
}

// OnlineUsers 当前在线的用户ID，升序
func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]int64, 0, len(r.users))
	for userID := range r.users {
		users = append(users, userID)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// ConnectionCount 全部连接数
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, conns := range r.users {
		total += len(conns)
	}
	return total
}
