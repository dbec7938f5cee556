package dao

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/database"
)

// newTestDB 基于临时SQLite文件的数据库，单连接串行执行
func newTestDB(t *testing.T) *database.PostgreSQL {
	t.Helper()
	db, err := database.NewWithDialector(sqlite.Open(filepath.Join(t.TempDir(), "social.db")), "social_test")
	require.NoError(t, err)

	sqlDB, err := db.GetDB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(Models()...))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var testIDs int64 = 1000

func nextID() int64 {
	testIDs++
	return testIDs
}

func newRequest(sender, receiver int64) *model.FriendRequest {
	return &model.FriendRequest{
		ID:         nextID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     model.RequestStatusPending,
	}
}

func newNotification(recipient int64, read bool, createdAt time.Time) *model.Notification {
	return &model.Notification{
		ID:          nextID(),
		RecipientID: recipient,
		SenderID:    1,
		Type:        model.NotificationFriendAccepted,
		Message:     "hi",
		Read:        read,
		CreatedAt:   createdAt,
	}
}

var bg = context.Background()
