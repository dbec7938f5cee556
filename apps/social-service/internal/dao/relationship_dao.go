package dao

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tsync-social/apps/social-service/internal/model"
	"tsync-social/pkg/database"
)

// relationshipDAO 好友关系数据访问实现
type relationshipDAO struct {
	db *database.PostgreSQL
}

// NewRelationshipDAO 创建好友关系DAO实例
func NewRelationshipDAO(db *database.PostgreSQL) RelationshipDAO {
	return &relationshipDAO{db: db}
}

// isDuplicateKey 唯一约束冲突，兼容未开启错误转换的驱动
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// CreateFriendRequest 创建好友申请，同一用户对已有pending记录时返回DuplicateRequest
func (d *relationshipDAO) CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	req.PairKey = model.PairKey(req.SenderID, req.ReceiverID)
	if err := d.db.WithContext(ctx).Create(req).Error; err != nil {
		if isDuplicateKey(err) {
			return model.ErrDuplicateRequest
		}
		return fmt.Errorf("create friend request: %w", err)
	}
	return nil
}

// GetFriendRequest 获取好友申请
func (d *relationshipDAO) GetFriendRequest(ctx context.Context, requestID int64) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := d.db.WithContext(ctx).Where("id = ?", requestID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFound("friend request %d not found", requestID)
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	return &req, nil
}

// FindPendingBetween 查找用户对之间的pending申请，不存在时返回nil
func (d *relationshipDAO) FindPendingBetween(ctx context.Context, userA, userB int64) (*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := d.db.WithContext(ctx).
		Where("pair_key = ? AND status = ?", model.PairKey(userA, userB), model.RequestStatusPending).
		Limit(1).
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[0], nil
}

// FindRequest 按有序用户对和状态查找，不存在时返回nil
func (d *relationshipDAO) FindRequest(ctx context.Context, senderID, receiverID int64, status string) (*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := d.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, status).
		Order("updated_at DESC").
		Limit(1).
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return reqs[0], nil
}

// ListRequestsBetween 用户对之间的全部申请，pending优先，其次按更新时间倒序
func (d *relationshipDAO) ListRequestsBetween(ctx context.Context, userA, userB int64) ([]*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := d.db.WithContext(ctx).
		Where("pair_key = ?", model.PairKey(userA, userB)).
		Order("updated_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list requests between: %w", err)
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Status == model.RequestStatusPending && reqs[j].Status != model.RequestStatusPending
	})
	return reqs, nil
}

// TransitionFriendRequest 条件更新状态，当前状态不是from时返回NotFound
func (d *relationshipDAO) TransitionFriendRequest(ctx context.Context, requestID int64, from, to string) (*model.FriendRequest, error) {
	var updated *model.FriendRequest
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		req, err := transition(tx, requestID, from, to)
		if err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AcceptFriendRequest 在同一事务中更新状态并写入双向好友关系
func (d *relationshipDAO) AcceptFriendRequest(ctx context.Context, requestID int64) (*model.FriendRequest, error) {
	var accepted *model.FriendRequest
	err := d.db.Transaction(ctx, func(tx *gorm.DB) error {
		req, err := transition(tx, requestID, model.RequestStatusPending, model.RequestStatusAccepted)
		if err != nil {
			return err
		}
		if err := addEdges(tx, req.SenderID, req.ReceiverID); err != nil {
			return err
		}
		accepted = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func transition(tx *gorm.DB, requestID int64, from, to string) (*model.FriendRequest, error) {
	result := tx.Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, from).
		Update("status", to)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return nil, model.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("update friend request status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, model.NotFound("no %s friend request %d", from, requestID)
	}

	var req model.FriendRequest
	if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
		return nil, fmt.Errorf("reload friend request: %w", err)
	}
	return &req, nil
}

func addEdges(tx *gorm.DB, userA, userB int64) error {
	edges := []*model.Friend{
		{UserID: userA, FriendID: userB},
		{UserID: userB, FriendID: userA},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error; err != nil {
		return fmt.Errorf("create friend edges: %w", err)
	}
	return nil
}

// DeleteFriendRequest 删除好友申请
func (d *relationshipDAO) DeleteFriendRequest(ctx context.Context, requestID int64) error {
	result := d.db.WithContext(ctx).Where("id = ?", requestID).Delete(&model.FriendRequest{})
	if result.Error != nil {
		return fmt.Errorf("delete friend request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.NotFound("friend request %d not found", requestID)
	}
	return nil
}

// ListSentRequests 用户发出的申请，status为空时不过滤
func (d *relationshipDAO) ListSentRequests(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error) {
	return d.listRequests(ctx, "sender_id = ?", userID, status)
}

// ListReceivedRequests 用户收到的申请，status为空时不过滤
func (d *relationshipDAO) ListReceivedRequests(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error) {
	return d.listRequests(ctx, "receiver_id = ?", userID, status)
}

func (d *relationshipDAO) listRequests(ctx context.Context, cond string, userID int64, status string) ([]*model.FriendRequest, error) {
	query := d.db.WithContext(ctx).Where(cond, userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var reqs []*model.FriendRequest
	if err := query.Order("created_at DESC").Order("id DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	return reqs, nil
}

// ListAsymmetricAccepted 已接受但缺少任一方向好友关系的申请
func (d *relationshipDAO) ListAsymmetricAccepted(ctx context.Context) ([]*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := d.db.WithContext(ctx).
		Where("status = ?", model.RequestStatusAccepted).
		Where("(NOT EXISTS (SELECT 1 FROM friends f WHERE f.user_id = friend_requests.sender_id AND f.friend_id = friend_requests.receiver_id)" +
			" OR NOT EXISTS (SELECT 1 FROM friends f WHERE f.user_id = friend_requests.receiver_id AND f.friend_id = friend_requests.sender_id))").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list asymmetric friendships: %w", err)
	}
	return reqs, nil
}

// IsFriend userID的好友列表中是否有friendID
func (d *relationshipDAO) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Friend{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check friend: %w", err)
	}
	return count > 0, nil
}

// AddFriendEdges 幂等写入双向好友关系
func (d *relationshipDAO) AddFriendEdges(ctx context.Context, userA, userB int64) error {
	return addEdges(d.db.WithContext(ctx), userA, userB)
}

// RemoveFriendship 删除双向好友关系及两人之间的全部申请记录
func (d *relationshipDAO) RemoveFriendship(ctx context.Context, userA, userB int64) error {
	return d.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userA, userB, userB, userA).Delete(&model.Friend{}).Error; err != nil {
			return fmt.Errorf("delete friend edges: %w", err)
		}
		if err := tx.Where("pair_key = ?", model.PairKey(userA, userB)).Delete(&model.FriendRequest{}).Error; err != nil {
			return fmt.Errorf("delete friend requests: %w", err)
		}
		return nil
	})
}

// ListFriends 好友列表
func (d *relationshipDAO) ListFriends(ctx context.Context, userID int64) ([]*model.Friend, error) {
	var friends []*model.Friend
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("friend_id ASC").
		Find(&friends).Error
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// CreateBlock 幂等拉黑
func (d *relationshipDAO) CreateBlock(ctx context.Context, userID, blockedID int64) error {
	block := &model.Block{UserID: userID, BlockedID: blockedID}
	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(block).Error; err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

// DeleteBlock 取消拉黑，返回是否存在
func (d *relationshipDAO) DeleteBlock(ctx context.Context, userID, blockedID int64) (bool, error) {
	result := d.db.WithContext(ctx).
		Where("user_id = ? AND blocked_id = ?", userID, blockedID).
		Delete(&model.Block{})
	if result.Error != nil {
		return false, fmt.Errorf("delete block: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// IsBlockedEither 任一方拉黑了另一方
func (d *relationshipDAO) IsBlockedEither(ctx context.Context, userA, userB int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Block{}).
		Where("(user_id = ? AND blocked_id = ?) OR (user_id = ? AND blocked_id = ?)", userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return count > 0, nil
}

// ListBlocked 拉黑列表
func (d *relationshipDAO) ListBlocked(ctx context.Context, userID int64) ([]*model.Block, error) {
	var blocks []*model.Block
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&blocks).Error
	if err != nil {
		return nil, fmt.Errorf("list blocked: %w", err)
	}
	return blocks, nil
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{
		&model.FriendRequest{},
		&model.Friend{},
		&model.Block{},
		&model.Notification{},
	}
}
