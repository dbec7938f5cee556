package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tsync-social/apps/social-service/internal/dao"
	"tsync-social/apps/social-service/internal/model"
	tracecontext "tsync-social/pkg/context"
	"tsync-social/pkg/logger"
	"tsync-social/pkg/telemetry"
)

// RelationshipService 好友关系服务，负责申请状态机和好友关系的一致性
type RelationshipService struct {
	dao       dao.RelationshipDAO
	ids       IDGenerator
	notifier  Notifier
	publisher EventPublisher
	logger    logger.Logger
}

// NewRelationshipService 创建好友关系服务，notifier和publisher可为nil
func NewRelationshipService(relationDAO dao.RelationshipDAO, ids IDGenerator, notifier Notifier, publisher EventPublisher, log logger.Logger) *RelationshipService {
	return &RelationshipService{
		dao:       relationDAO,
		ids:       ids,
		notifier:  notifier,
		publisher: publisher,
		logger:    log,
	}
}

// fail 记录span错误，存储层错误统一包装为INTERNAL
func fail(span trace.Span, err error, msg string) error {
	var domainErr *model.Error
	if !errors.As(err, &domainErr) {
		err = model.Internal(err, msg)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

func validateUserIDs(ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			return model.InvalidArgument("invalid user id %d", id)
		}
	}
	return nil
}

// SendRequest 发送好友申请
func (s *RelationshipService) SendRequest(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.SendRequest")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("friend_request.sender_id", senderID),
		attribute.Int64("friend_request.receiver_id", receiverID),
	)
	ctx = tracecontext.WithUserID(ctx, senderID)

	if err := validateUserIDs(senderID, receiverID); err != nil {
		return nil, fail(span, err, "invalid user id")
	}
	if senderID == receiverID {
		return nil, fail(span, model.ErrSelfReference, "cannot befriend yourself")
	}

	friends, err := s.areFriendsEitherWay(ctx, senderID, receiverID)
	if err != nil {
		return nil, fail(span, err, "failed to check friendship")
	}
	if friends {
		return nil, fail(span, model.ErrAlreadyFriends, "already friends")
	}

	blocked, err := s.dao.IsBlockedEither(ctx, senderID, receiverID)
	if err != nil {
		return nil, fail(span, err, "failed to check blocks")
	}
	if blocked {
		return nil, fail(span, model.ErrBlocked, "blocked")
	}

	pending, err := s.dao.FindPendingBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, fail(span, err, "failed to check pending request")
	}
	if pending != nil {
		return nil, fail(span, model.ErrDuplicateRequest, "pending request exists")
	}

	req, err := s.createOrReactivate(ctx, senderID, receiverID)
	if err != nil {
		return nil, fail(span, err, "failed to save friend request")
	}
	span.SetAttributes(attribute.Int64("friend_request.id", req.ID))

	s.logger.Info(ctx, "Friend request sent",
		logger.F("request_id", req.ID),
		logger.F("sender_id", senderID),
		logger.F("receiver_id", receiverID))

	s.emit(ctx, model.FriendRequestReceived{Request: req})
	span.SetStatus(codes.Ok, "friend request sent")
	return req, nil
}

// createOrReactivate 同方向被拒绝的申请原地恢复为pending，保持ID不变
func (s *RelationshipService) createOrReactivate(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	rejected, err := s.dao.FindRequest(ctx, senderID, receiverID, model.RequestStatusRejected)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return s.dao.TransitionFriendRequest(ctx, rejected.ID, model.RequestStatusRejected, model.RequestStatusPending)
	}

	req := &model.FriendRequest{
		ID:         s.ids.NextID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.RequestStatusPending,
	}
	if err := s.dao.CreateFriendRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *RelationshipService) areFriendsEitherWay(ctx context.Context, a, b int64) (bool, error) {
	ok, err := s.dao.IsFriend(ctx, a, b)
	if err != nil || ok {
		return ok, err
	}
	return s.dao.IsFriend(ctx, b, a)
}

// loadPendingForReceiver 加载待处理申请并校验接收方
func (s *RelationshipService) loadPendingForReceiver(ctx context.Context, receiverID, requestID int64) (*model.FriendRequest, error) {
	req, err := s.dao.GetFriendRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusPending {
		return nil, model.NotFound("friend request %d is not pending", requestID)
	}
	if req.ReceiverID != receiverID {
		return nil, model.ErrUnauthorized
	}
	return req, nil
}

// AcceptRequest 接受好友申请，状态更新与双向好友关系在同一事务中写入
func (s *RelationshipService) AcceptRequest(ctx context.Context, receiverID, requestID int64) (*model.FriendRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.AcceptRequest")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("friend_request.id", requestID),
		attribute.Int64("friend_request.receiver_id", receiverID),
	)
	ctx = tracecontext.WithUserID(ctx, receiverID)

	if _, err := s.loadPendingForReceiver(ctx, receiverID, requestID); err != nil {
		return nil, fail(span, err, "cannot accept friend request")
	}

	req, err := s.dao.AcceptFriendRequest(ctx, requestID)
	if err != nil {
		return nil, fail(span, err, "failed to accept friend request")
	}

	s.logger.Info(ctx, "Friend request accepted",
		logger.F("request_id", req.ID),
		logger.F("sender_id", req.SenderID),
		logger.F("receiver_id", req.ReceiverID))

	s.emit(ctx, model.FriendAccepted{Request: req})
	span.SetStatus(codes.Ok, "friend request accepted")
	return req, nil
}

// RejectRequest 拒绝好友申请
func (s *RelationshipService) RejectRequest(ctx context.Context, receiverID, requestID int64) (*model.FriendRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.RejectRequest")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("friend_request.id", requestID),
		attribute.Int64("friend_request.receiver_id", receiverID),
	)
	ctx = tracecontext.WithUserID(ctx, receiverID)

	if _, err := s.loadPendingForReceiver(ctx, receiverID, requestID); err != nil {
		return nil, fail(span, err, "cannot reject friend request")
	}

	req, err := s.dao.TransitionFriendRequest(ctx, requestID, model.RequestStatusPending, model.RequestStatusRejected)
	if err != nil {
		return nil, fail(span, err, "failed to reject friend request")
	}

	s.logger.Info(ctx, "Friend request rejected", logger.F("request_id", req.ID))
	s.emit(ctx, model.FriendRejected{Request: req})
	span.SetStatus(codes.Ok, "friend request rejected")
	return req, nil
}

// CancelRequest 撤回好友申请，无论状态都会删除记录
func (s *RelationshipService) CancelRequest(ctx context.Context, senderID, requestID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "social.service.CancelRequest")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("friend_request.id", requestID),
		attribute.Int64("friend_request.sender_id", senderID),
	)
	ctx = tracecontext.WithUserID(ctx, senderID)

	req, err := s.dao.GetFriendRequest(ctx, requestID)
	if err != nil {
		return fail(span, err, "friend request not found")
	}
	if req.SenderID != senderID {
		return fail(span, model.ErrUnauthorized, "not the sender")
	}

	if err := s.dao.DeleteFriendRequest(ctx, requestID); err != nil {
		return fail(span, err, "failed to delete friend request")
	}

	s.logger.Info(ctx, "Friend request canceled", logger.F("request_id", requestID))
	s.emit(ctx, model.FriendRequestCanceled{Request: req})
	span.SetStatus(codes.Ok, "friend request canceled")
	return nil
}

// RemoveFriend 解除好友，同时删除两人之间的全部申请记录
func (s *RelationshipService) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "social.service.RemoveFriend")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("friend.user_id", userID),
		attribute.Int64("friend.friend_id", friendID),
	)
	ctx = tracecontext.WithUserID(ctx, userID)

	if err := validateUserIDs(userID, friendID); err != nil {
		return fail(span, err, "invalid user id")
	}
	if userID == friendID {
		return fail(span, model.ErrSelfReference, "cannot unfriend yourself")
	}

	mutual, err := s.areMutualFriends(ctx, userID, friendID)
	if err != nil {
		return fail(span, err, "failed to check friendship")
	}
	if !mutual {
		return fail(span, model.ErrNotFriends, "not friends")
	}

	if err := s.dao.RemoveFriendship(ctx, userID, friendID); err != nil {
		return fail(span, err, "failed to remove friendship")
	}

	s.logger.Info(ctx, "Friend removed", logger.F("friend_id", friendID))
	s.emit(ctx, model.FriendRemoved{UserID: userID, FriendID: friendID})
	span.SetStatus(codes.Ok, "friend removed")
	return nil
}

func (s *RelationshipService) areMutualFriends(ctx context.Context, a, b int64) (bool, error) {
	ok, err := s.dao.IsFriend(ctx, a, b)
	if err != nil || !ok {
		return false, err
	}
	return s.dao.IsFriend(ctx, b, a)
}

// CheckExists 查询两人之间的申请，pending优先，方向相对于userA
func (s *RelationshipService) CheckExists(ctx context.Context, userA, userB int64) (*model.RequestExistence, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.CheckExists")
	defer span.End()

	if err := validateUserIDs(userA, userB); err != nil {
		return nil, fail(span, err, "invalid user id")
	}

	reqs, err := s.dao.ListRequestsBetween(ctx, userA, userB)
	if err != nil {
		return nil, fail(span, err, "failed to load friend requests")
	}
	if len(reqs) == 0 {
		return &model.RequestExistence{Exists: false}, nil
	}

	req := reqs[0]
	direction := model.DirectionReceived
	if req.SenderID == userA {
		direction = model.DirectionSent
	}
	return &model.RequestExistence{
		Exists:    true,
		RequestID: req.ID,
		Status:    req.Status,
		Direction: direction,
	}, nil
}

// GetFriends 好友列表
func (s *RelationshipService) GetFriends(ctx context.Context, userID int64) ([]*model.Friend, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.GetFriends")
	defer span.End()

	friends, err := s.dao.ListFriends(ctx, userID)
	if err != nil {
		return nil, fail(span, err, "failed to list friends")
	}
	span.SetAttributes(attribute.Int("friend.count", len(friends)))
	return friends, nil
}

// GetPending 收到的待处理申请
func (s *RelationshipService) GetPending(ctx context.Context, userID int64) ([]*model.FriendRequest, error) {
	return s.GetReceived(ctx, userID, model.RequestStatusPending)
}

// GetSent 发出的申请，status为空时返回全部
func (s *RelationshipService) GetSent(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.GetSent")
	defer span.End()

	if !model.ValidateRequestStatus(status) {
		return nil, fail(span, model.InvalidArgument("invalid status %q", status), "invalid status")
	}
	reqs, err := s.dao.ListSentRequests(ctx, userID, status)
	if err != nil {
		return nil, fail(span, err, "failed to list sent requests")
	}
	return reqs, nil
}

// GetReceived 收到的申请，status为空时返回全部
func (s *RelationshipService) GetReceived(ctx context.Context, userID int64, status string) ([]*model.FriendRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.GetReceived")
	defer span.End()

	if !model.ValidateRequestStatus(status) {
		return nil, fail(span, model.InvalidArgument("invalid status %q", status), "invalid status")
	}
	reqs, err := s.dao.ListReceivedRequests(ctx, userID, status)
	if err != nil {
		return nil, fail(span, err, "failed to list received requests")
	}
	return reqs, nil
}

// BlockUser 拉黑用户，并撤销两人之间待处理的申请
func (s *RelationshipService) BlockUser(ctx context.Context, userID, targetID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "social.service.BlockUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("block.target_id", targetID))
	ctx = tracecontext.WithUserID(ctx, userID)

	if err := validateUserIDs(userID, targetID); err != nil {
		return fail(span, err, "invalid user id")
	}
	if userID == targetID {
		return fail(span, model.ErrSelfReference, "cannot block yourself")
	}

	if err := s.dao.CreateBlock(ctx, userID, targetID); err != nil {
		return fail(span, err, "failed to block user")
	}

	pending, err := s.dao.FindPendingBetween(ctx, userID, targetID)
	if err != nil {
		return fail(span, err, "failed to check pending request")
	}
	if pending != nil {
		if err := s.dao.DeleteFriendRequest(ctx, pending.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			return fail(span, err, "failed to drop pending request")
		}
		s.logger.Info(ctx, "Pending friend request dropped by block", logger.F("request_id", pending.ID))
	}

	s.logger.Info(ctx, "User blocked", logger.F("target_id", targetID))
	return nil
}

// UnblockUser 取消拉黑，未拉黑时也返回成功
func (s *RelationshipService) UnblockUser(ctx context.Context, userID, targetID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "social.service.UnblockUser")
	defer span.End()

	if _, err := s.dao.DeleteBlock(ctx, userID, targetID); err != nil {
		return fail(span, err, "failed to unblock user")
	}
	return nil
}

// ListBlocked 拉黑列表
func (s *RelationshipService) ListBlocked(ctx context.Context, userID int64) ([]*model.Block, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.ListBlocked")
	defer span.End()

	blocks, err := s.dao.ListBlocked(ctx, userID)
	if err != nil {
		return nil, fail(span, err, "failed to list blocked users")
	}
	return blocks, nil
}

// RepairFriendships 补齐已接受申请缺失的好友关系，可重复执行
func (s *RelationshipService) RepairFriendships(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "social.service.RepairFriendships")
	defer span.End()

	broken, err := s.dao.ListAsymmetricAccepted(ctx)
	if err != nil {
		return 0, fail(span, err, "failed to find asymmetric friendships")
	}

	repaired := 0
	for _, req := range broken {
		if err := s.dao.AddFriendEdges(ctx, req.SenderID, req.ReceiverID); err != nil {
			return repaired, fail(span, err, "failed to repair friendship")
		}
		repaired++
		s.logger.Warn(ctx, "Repaired asymmetric friendship",
			logger.F("request_id", req.ID),
			logger.F("sender_id", req.SenderID),
			logger.F("receiver_id", req.ReceiverID))
	}

	span.SetAttributes(attribute.Int("friend.repaired", repaired))
	return repaired, nil
}

// emit 写入成功后的副作用，失败只记录日志
func (s *RelationshipService) emit(ctx context.Context, event model.RelationshipEvent) {
	ctx = tracecontext.Detach(ctx)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Error(ctx, "Failed to create notification",
				logger.F("event", event.EventName()),
				logger.F("recipient_id", event.RecipientID()),
				logger.F("error", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn(ctx, "Failed to publish domain event",
				logger.F("event", event.EventName()),
				logger.F("error", err))
		}
	}
}
