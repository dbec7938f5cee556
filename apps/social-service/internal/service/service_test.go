package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"tsync-social/apps/social-service/internal/dao"
	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/database"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/presence"
)

var bg = context.Background()

type counterIDs struct {
	n atomic.Int64
}

func (c *counterIDs) NextID() int64 {
	return c.n.Add(1) + 5000
}

func newTestDB(t *testing.T) *database.PostgreSQL {
	t.Helper()
	db, err := database.NewWithDialector(sqlite.Open(filepath.Join(t.TempDir(), "social.db")), "social_test")
	require.NoError(t, err)

	sqlDB, err := db.GetDB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(dao.Models()...))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// frameClient 记录收到的推送帧
type frameClient struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
}

func (c *frameClient) ID() string { return c.id }

func (c *frameClient) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return true
}

type pushedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *frameClient) received(t *testing.T) []pushedFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pushedFrame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f pushedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

// recordingPublisher 记录发布的领域事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.EventName())
	}
	return names
}

type fixture struct {
	db            *database.PostgreSQL
	relationDAO   dao.RelationshipDAO
	notifications *NotificationService
	relationships *RelationshipService
	router        *presence.Router
	publisher     *recordingPublisher
}

func newFixture(t *testing.T, opts NotificationOptions) *fixture {
	t.Helper()
	db := newTestDB(t)
	ids := &counterIDs{}
	log := logger.NewNop()

	router := presence.NewRouter(presence.NewRegistry(), log)
	notifications := NewNotificationService(dao.NewNotificationDAO(db), ids, router, opts, log)
	publisher := &recordingPublisher{}
	relationDAO := dao.NewRelationshipDAO(db)

	return &fixture{
		db:            db,
		relationDAO:   relationDAO,
		notifications: notifications,
		relationships: NewRelationshipService(relationDAO, ids, notifications, publisher, log),
		router:        router,
		publisher:     publisher,
	}
}

func (f *fixture) connect(userID int64) *frameClient {
	client := &frameClient{id: "conn-" + strconv.FormatInt(userID, 10)}
	f.router.Attach(userID, client)
	return client
}

func (f *fixture) allNotifications(t *testing.T, userID int64) []*model.Notification {
	t.Helper()
	page, err := f.notifications.GetUserNotifications(bg, userID, model.ListQuery{})
	require.NoError(t, err)
	return page.Items
}
