package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsync-social/apps/social-service/internal/model"
)

func TestCreateFriendRequest_PendingPairIsUnique(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	require.NoError(t, d.CreateFriendRequest(bg, newRequest(1, 2)))

	err := d.CreateFriendRequest(bg, newRequest(2, 1))
	assert.ErrorIs(t, err, model.ErrDuplicateRequest)

	err = d.CreateFriendRequest(bg, newRequest(1, 2))
	assert.ErrorIs(t, err, model.ErrDuplicateRequest)
}

func TestCreateFriendRequest_RejectedDoesNotBlockNewPending(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	first := newRequest(1, 2)
	require.NoError(t, d.CreateFriendRequest(bg, first))
	_, err := d.TransitionFriendRequest(bg, first.ID, model.RequestStatusPending, model.RequestStatusRejected)
	require.NoError(t, err)

	require.NoError(t, d.CreateFriendRequest(bg, newRequest(2, 1)))

	// 对向已有pending时不能重新激活被拒绝的记录
	_, err = d.TransitionFriendRequest(bg, first.ID, model.RequestStatusRejected, model.RequestStatusPending)
	assert.ErrorIs(t, err, model.ErrDuplicateRequest)
}

func TestFindPendingBetween(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	none, err := d.FindPendingBetween(bg, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, none)

	req := newRequest(2, 1)
	require.NoError(t, d.CreateFriendRequest(bg, req))

	found, err := d.FindPendingBetween(bg, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, req.ID, found.ID)
	assert.Equal(t, "1:2", found.PairKey)
}

func TestAcceptFriendRequest_WritesBothEdges(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	req := newRequest(1, 2)
	require.NoError(t, d.CreateFriendRequest(bg, req))

	accepted, err := d.AcceptFriendRequest(bg, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusAccepted, accepted.Status)

	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		ok, err := d.IsFriend(bg, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok, "%d -> %d", pair[0], pair[1])
	}

	_, err = d.AcceptFriendRequest(bg, req.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetAndDeleteFriendRequest_NotFound(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	_, err := d.GetFriendRequest(bg, 42)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, d.DeleteFriendRequest(bg, 42), model.ErrNotFound)
}

func TestRemoveFriendship_DeletesEdgesAndHistory(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	old := newRequest(2, 1)
	require.NoError(t, d.CreateFriendRequest(bg, old))
	_, err := d.TransitionFriendRequest(bg, old.ID, model.RequestStatusPending, model.RequestStatusRejected)
	require.NoError(t, err)

	req := newRequest(1, 2)
	require.NoError(t, d.CreateFriendRequest(bg, req))
	_, err = d.AcceptFriendRequest(bg, req.ID)
	require.NoError(t, err)

	other := newRequest(1, 3)
	require.NoError(t, d.CreateFriendRequest(bg, other))

	require.NoError(t, d.RemoveFriendship(bg, 2, 1))

	reqs, err := d.ListRequestsBetween(bg, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	friends, err := d.ListFriends(bg, 1)
	require.NoError(t, err)
	assert.Empty(t, friends)

	_, err = d.GetFriendRequest(bg, other.ID)
	assert.NoError(t, err, "requests of other pairs are kept")
}

func TestListRequestsBetween_PendingFirst(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	rejected := newRequest(1, 2)
	require.NoError(t, d.CreateFriendRequest(bg, rejected))
	_, err := d.TransitionFriendRequest(bg, rejected.ID, model.RequestStatusPending, model.RequestStatusRejected)
	require.NoError(t, err)

	pending := newRequest(2, 1)
	require.NoError(t, d.CreateFriendRequest(bg, pending))

	reqs, err := d.ListRequestsBetween(bg, 1, 2)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, pending.ID, reqs[0].ID)
}

func TestListSentAndReceived(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	a := newRequest(1, 2)
	b := newRequest(1, 3)
	c := newRequest(4, 1)
	for _, r := range []*model.FriendRequest{a, b, c} {
		require.NoError(t, d.CreateFriendRequest(bg, r))
	}
	_, err := d.TransitionFriendRequest(bg, b.ID, model.RequestStatusPending, model.RequestStatusRejected)
	require.NoError(t, err)

	sent, err := d.ListSentRequests(bg, 1, "")
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	sentPending, err := d.ListSentRequests(bg, 1, model.RequestStatusPending)
	require.NoError(t, err)
	require.Len(t, sentPending, 1)
	assert.Equal(t, a.ID, sentPending[0].ID)

	received, err := d.ListReceivedRequests(bg, 1, model.RequestStatusPending)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, c.ID, received[0].ID)
}

func TestListAsymmetricAccepted_AndIdempotentEdges(t *testing.T) {
	db := newTestDB(t)
	d := NewRelationshipDAO(db)

	req := newRequest(1, 2)
	require.NoError(t, d.CreateFriendRequest(bg, req))
	_, err := d.AcceptFriendRequest(bg, req.ID)
	require.NoError(t, err)

	broken, err := d.ListAsymmetricAccepted(bg)
	require.NoError(t, err)
	assert.Empty(t, broken)

	// 模拟只写入了一个方向
	require.NoError(t, db.GetDB().Where("user_id = ? AND friend_id = ?", 2, 1).Delete(&model.Friend{}).Error)

	broken, err = d.ListAsymmetricAccepted(bg)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, req.ID, broken[0].ID)

	require.NoError(t, d.AddFriendEdges(bg, 1, 2))
	require.NoError(t, d.AddFriendEdges(bg, 1, 2))

	broken, err = d.ListAsymmetricAccepted(bg)
	require.NoError(t, err)
	assert.Empty(t, broken)

	friends, err := d.ListFriends(bg, 1)
	require.NoError(t, err)
	assert.Len(t, friends, 1)
}

func TestBlocks(t *testing.T) {
	d := NewRelationshipDAO(newTestDB(t))

	require.NoError(t, d.CreateBlock(bg, 1, 2))
	require.NoError(t, d.CreateBlock(bg, 1, 2))

	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		blocked, err := d.IsBlockedEither(bg, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	list, err := d.ListBlocked(bg, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].BlockedID)

	existed, err := d.DeleteBlock(bg, 1, 2)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = d.DeleteBlock(bg, 1, 2)
	require.NoError(t, err)
	assert.False(t, existed)

	blocked, err := d.IsBlockedEither(bg, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)
}
