package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/cache"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

type conversationFixture struct {
	conversations *mocks.ConversationRepositoryMock
	memberships   *mocks.MembershipRepositoryMock
	messages      *mocks.MessageRepositoryMock
	seen          *mocks.SeenRepositoryMock
	users         *mocks.UserRepositoryMock
	cache         *mocks.CacheMock
	svc           *ConversationService
}

func newConversationFixture() *conversationFixture {
	f := &conversationFixture{
		conversations: &mocks.ConversationRepositoryMock{},
		memberships:   &mocks.MembershipRepositoryMock{},
		messages:      &mocks.MessageRepositoryMock{},
		seen:          &mocks.SeenRepositoryMock{},
		users:         &mocks.UserRepositoryMock{},
		cache:         &mocks.CacheMock{},
	}
	// roster mutations drop cached status entries; tests that care about the
	// exact keys assert on the recorded calls
	f.cache.On("Del", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.cache.On("Del", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	emitter := telemetry.NewEmitter(rabbitmq.NewPublisher("", "", zerolog.Nop()), zerolog.Nop())
	f.svc = NewConversationService(
		f.conversations, f.memberships, f.messages, f.seen, f.users,
		f.cache, 3*time.Second, emitter, zerolog.Nop(),
	)
	return f
}

func (f *conversationFixture) expectView(convID, viewerID int64, members []models.Member) {
	f.memberships.On("Members", mock.Anything, convID).Return(members, nil)
	f.seen.On("UnreadCount", mock.Anything, convID, viewerID).Return(0, nil)
	f.seen.On("HasUnseenLatest", mock.Anything, convID, viewerID).Return(false, nil)
	f.messages.On("Latest", mock.Anything, convID).Return(nil, repositories.ErrMessageNotFound)
}

func rosterMember(userID int64, name string, admin bool) models.Member {
	return models.Member{
		Membership: models.Membership{UserID: userID, IsAdmin: admin},
		Name:       name,
	}
}

func TestCreateRequiresTwoDistinctMembers(t *testing.T) {
	f := newConversationFixture()

	_, err := f.svc.Create(context.Background(), 1, []int64{1, 1}, nil)
	assert.ErrorIs(t, err, ErrInsufficientMembers)
}

func TestCreateDedupesAndDerivesName(t *testing.T) {
	f := newConversationFixture()

	f.users.On("ByIDs", mock.Anything, []int64{1, 2}).
		Return(map[int64]models.User{1: {ID: 1, Name: "Ana"}, 2: {ID: 2, Name: "Bea"}}, nil)
	f.conversations.On("CreateWithMembers", mock.Anything, (*string)(nil), false, int64(1), []int64{1, 2}).
		Return(models.Conversation{ID: 10, CreatedBy: 1}, nil)
	f.expectView(10, 1, []models.Member{
		rosterMember(1, "Ana", true),
		rosterMember(2, "Bea", false),
	})

	view, err := f.svc.Create(context.Background(), 1, []int64{2, 2, 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), view.ID)
	assert.Equal(t, "Bea", view.Name)
	assert.False(t, view.IsGroup)
	assert.True(t, view.IsAdmin)
	f.conversations.AssertExpectations(t)
}

func TestCreateExplicitNameMakesGroup(t *testing.T) {
	f := newConversationFixture()
	name := "Team"

	f.users.On("ByIDs", mock.Anything, []int64{1, 2}).
		Return(map[int64]models.User{1: {ID: 1, Name: "Ana"}, 2: {ID: 2, Name: "Bea"}}, nil)
	f.conversations.On("CreateWithMembers", mock.Anything, &name, true, int64(1), []int64{1, 2}).
		Return(models.Conversation{ID: 11, Name: &name, IsGroup: true, CreatedBy: 1}, nil)
	f.expectView(11, 1, []models.Member{
		rosterMember(1, "Ana", true),
		rosterMember(2, "Bea", false),
	})

	view, err := f.svc.Create(context.Background(), 1, []int64{2}, &name)
	require.NoError(t, err)
	assert.Equal(t, "Team", view.Name)
	assert.True(t, view.IsGroup)
}

func TestCreateThreeMembersIsGroup(t *testing.T) {
	f := newConversationFixture()

	f.users.On("ByIDs", mock.Anything, []int64{1, 2, 3}).
		Return(map[int64]models.User{1: {ID: 1, Name: "Ana"}, 2: {ID: 2, Name: "Bea"}, 3: {ID: 3, Name: "Carla"}}, nil)
	f.conversations.On("CreateWithMembers", mock.Anything, (*string)(nil), true, int64(1), []int64{1, 2, 3}).
		Return(models.Conversation{ID: 12, IsGroup: true, CreatedBy: 1}, nil)
	f.expectView(12, 1, []models.Member{
		rosterMember(1, "Ana", true),
		rosterMember(2, "Bea", false),
		rosterMember(3, "Carla", false),
	})

	view, err := f.svc.Create(context.Background(), 1, []int64{2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bea, Carla", view.Name)
}

func TestCreateUnknownMember(t *testing.T) {
	f := newConversationFixture()

	f.users.On("ByIDs", mock.Anything, []int64{1, 99}).
		Return(map[int64]models.User{1: {ID: 1, Name: "Ana"}}, nil)

	_, err := f.svc.Create(context.Background(), 1, []int64{99}, nil)
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
	f.conversations.AssertNotCalled(t, "CreateWithMembers")
}

func TestDeleteCreatorOnly(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("Get", mock.Anything, int64(10)).
		Return(models.Conversation{ID: 10, CreatedBy: 1}, nil)

	err := f.svc.Delete(context.Background(), 2, 10)
	assert.ErrorIs(t, err, ErrForbidden)
	f.conversations.AssertNotCalled(t, "SoftDelete")
}

func TestDeleteByCreator(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("Get", mock.Anything, int64(10)).
		Return(models.Conversation{ID: 10, CreatedBy: 1}, nil)
	f.memberships.On("ActiveMemberIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)
	f.conversations.On("SoftDelete", mock.Anything, int64(10)).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), 1, 10))
	f.conversations.AssertExpectations(t)
	f.cache.AssertCalled(t, "Del", mock.Anything, "chat:status:1", "chat:status:2")
}

func TestLeaveDissolvesLastMember(t *testing.T) {
	f := newConversationFixture()

	f.memberships.On("Remove", mock.Anything, int64(10), int64(2)).
		Return(repositories.RemovalResult{Dissolved: true}, nil)

	result, err := f.svc.Leave(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.True(t, result.GroupDissolved)
	f.cache.AssertCalled(t, "Del", mock.Anything, "chat:status:2")
}

func TestLeaveReportsPromotion(t *testing.T) {
	f := newConversationFixture()

	f.memberships.On("Remove", mock.Anything, int64(10), int64(1)).
		Return(repositories.RemovalResult{PromotedUserID: 2}, nil)

	result, err := f.svc.Leave(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.False(t, result.GroupDissolved)
	assert.Equal(t, int64(2), result.PromotedUserID)
}

func TestLeaveTwoMemberFloor(t *testing.T) {
	f := newConversationFixture()

	f.memberships.On("Remove", mock.Anything, int64(10), int64(2)).
		Return(nil, repositories.ErrMinimumMembers)

	_, err := f.svc.Leave(context.Background(), 2, 10)
	assert.ErrorIs(t, err, repositories.ErrMinimumMembers)
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	f := newConversationFixture()

	f.memberships.On("IsAdmin", mock.Anything, int64(10), int64(2)).Return(false, nil)

	err := f.svc.AddMember(context.Background(), 2, 10, 3)
	assert.ErrorIs(t, err, ErrForbidden)
	f.memberships.AssertNotCalled(t, "Add")
}

func TestAddMemberAlreadyMember(t *testing.T) {
	f := newConversationFixture()

	f.memberships.On("IsAdmin", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.users.On("Get", mock.Anything, int64(3)).Return(models.User{ID: 3}, nil)
	f.memberships.On("Add", mock.Anything, int64(10), int64(3), false).
		Return(repositories.ErrAlreadyMember)

	err := f.svc.AddMember(context.Background(), 1, 10, 3)
	assert.ErrorIs(t, err, repositories.ErrAlreadyMember)
}

func TestRemoveMemberCreatorGuard(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("Get", mock.Anything, int64(10)).
		Return(models.Conversation{ID: 10, CreatedBy: 2}, nil)
	f.memberships.On("IsAdmin", mock.Anything, int64(10), int64(1)).Return(true, nil)

	err := f.svc.RemoveMember(context.Background(), 1, 10, 2)
	assert.ErrorIs(t, err, ErrCannotRemoveCreator)
	f.memberships.AssertNotCalled(t, "Remove")
}

func TestSearchUsersQueryTooShort(t *testing.T) {
	f := newConversationFixture()

	_, err := f.svc.SearchUsers(context.Background(), 1, "a")
	assert.ErrorIs(t, err, ErrQueryTooShort)
}

func TestStatusCacheHit(t *testing.T) {
	f := newConversationFixture()

	f.cache.On("Get", mock.Anything, "chat:status:1").Return("5", nil)

	status, err := f.svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, status.UnreadTotal)
	assert.False(t, status.ServerTime.IsZero())
	f.seen.AssertNotCalled(t, "UnreadTotal")
}

func TestStatusCacheMissCountsAndFills(t *testing.T) {
	f := newConversationFixture()

	f.cache.On("Get", mock.Anything, "chat:status:1").Return("", cache.ErrMiss)
	f.seen.On("UnreadTotal", mock.Anything, int64(1)).Return(3, nil)
	f.cache.On("Set", mock.Anything, "chat:status:1", "3", 3*time.Second).Return(nil)

	status, err := f.svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, status.UnreadTotal)
	f.cache.AssertExpectations(t)
}
