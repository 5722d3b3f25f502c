package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/storage"
	"messaging-service/internal/telemetry"
)

type messageFixture struct {
	messages    *mocks.MessageRepositoryMock
	memberships *mocks.MembershipRepositoryMock
	seen        *mocks.SeenRepositoryMock
	attachments *mocks.AttachmentRepositoryMock
	users       *mocks.UserRepositoryMock
	store       *mocks.StoreMock
	cache       *mocks.CacheMock
	svc         *MessageService
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		messages:    &mocks.MessageRepositoryMock{},
		memberships: &mocks.MembershipRepositoryMock{},
		seen:        &mocks.SeenRepositoryMock{},
		attachments: &mocks.AttachmentRepositoryMock{},
		users:       &mocks.UserRepositoryMock{},
		store:       &mocks.StoreMock{},
		cache:       &mocks.CacheMock{},
	}
	// status invalidation fires after sends and seen marks; tests that care
	// about the exact keys add their own expectations
	f.cache.On("Del", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.cache.On("Del", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	emitter := telemetry.NewEmitter(rabbitmq.NewPublisher("", "", zerolog.Nop()), zerolog.Nop())
	f.svc = NewMessageService(
		f.messages, f.memberships, f.seen, f.attachments, f.users,
		f.store, f.cache, 1024, emitter, zerolog.Nop(),
	)
	return f
}

// expectViews wires the bulk lookups the view composer performs.
func (f *messageFixture) expectViews(convID int64, users map[int64]models.User, activeIDs []int64) {
	f.users.On("ByIDs", mock.Anything, mock.Anything).Return(users, nil)
	f.attachments.On("ByMessageIDs", mock.Anything, mock.Anything).Return(map[int64][]models.Attachment{}, nil)
	f.seen.On("SeenBy", mock.Anything, mock.Anything).Return(map[int64][]models.SeenUser{}, nil)
	f.memberships.On("ActiveMemberIDs", mock.Anything, convID).Return(activeIDs, nil)
}

func textMessage(id, convID, authorID int64, body string) models.Message {
	return models.Message{ID: id, ConversationID: convID, AuthorID: authorID, Kind: models.KindText, Body: &body}
}

func TestSendRequiresMembership(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(5)).Return(false, nil)

	_, err := f.svc.Send(context.Background(), 5, 10, "hi", models.KindText, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "Append")
}

func TestSendSanitizesBody(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.messages.On("Append", mock.Anything, int64(10), int64(1), models.KindText,
		mock.MatchedBy(func(b *string) bool { return b != nil && *b == "hello <b>there</b>" }),
		(*int64)(nil),
	).Return(textMessage(100, 10, 1, "hello <b>there</b>"), nil)
	f.expectViews(10, map[int64]models.User{1: {ID: 1, Name: "Ana"}}, []int64{1, 2})

	view, err := f.svc.Send(context.Background(), 1, 10, `hello <b onclick="x()">there</b>`, models.KindText, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100), view.ID)
	assert.True(t, view.IsOwn)
	assert.False(t, view.SeenByEveryone)
	f.messages.AssertExpectations(t)
}

func TestSendEmptyAfterSanitization(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

	_, err := f.svc.Send(context.Background(), 1, 10, "<script>x()</script>", models.KindText, nil)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestSendInvalidKind(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

	_, err := f.svc.Send(context.Background(), 1, 10, "hi", "video", nil)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestSendInvalidParentPassesThrough(t *testing.T) {
	f := newMessageFixture()
	parentID := int64(999)

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.messages.On("Append", mock.Anything, int64(10), int64(1), models.KindText, mock.Anything, &parentID).
		Return(nil, repositories.ErrInvalidParent)

	_, err := f.svc.Send(context.Background(), 1, 10, "hi", models.KindText, &parentID)
	assert.ErrorIs(t, err, repositories.ErrInvalidParent)
}

func TestPollZeroCursorReturnsEmpty(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(2)).Return(true, nil)

	result, err := f.svc.Poll(context.Background(), 2, 10, 0)
	require.NoError(t, err)

	assert.Empty(t, result.Messages)
	assert.Zero(t, result.NewCount)
	f.messages.AssertNotCalled(t, "Since")
	f.seen.AssertNotCalled(t, "MarkSeen")
}

func TestPollReturnsNewerAndMarksSeen(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.messages.On("Since", mock.Anything, int64(10), int64(5)).
		Return([]models.Message{textMessage(6, 10, 1, "a"), textMessage(7, 10, 1, "b")}, nil)
	f.seen.On("MarkSeen", mock.Anything, int64(10), int64(2), mock.Anything).Return(nil)
	f.expectViews(10, map[int64]models.User{1: {ID: 1, Name: "Ana"}}, []int64{1, 2})

	result, err := f.svc.Poll(context.Background(), 2, 10, 5)
	require.NoError(t, err)

	assert.Equal(t, 2, result.NewCount)
	assert.Equal(t, int64(6), result.Messages[0].ID)
	assert.Equal(t, int64(7), result.Messages[1].ID)
	f.seen.AssertExpectations(t)
}

func TestPageReportsHasMoreAndMarksSeen(t *testing.T) {
	f := newMessageFixture()

	msgs := []models.Message{textMessage(1, 10, 1, "a"), textMessage(2, 10, 1, "b")}
	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.messages.On("Page", mock.Anything, int64(10), int64(0), 2).Return(msgs, nil)
	f.seen.On("MarkSeen", mock.Anything, int64(10), int64(2), mock.Anything).Return(nil)
	f.expectViews(10, map[int64]models.User{1: {ID: 1, Name: "Ana"}}, []int64{1, 2})

	result, err := f.svc.Page(context.Background(), 2, 10, 0, 2)
	require.NoError(t, err)

	assert.True(t, result.HasMore)
	assert.Len(t, result.Messages, 2)
	f.seen.AssertExpectations(t)
}

func TestPageEmptyConversationSkipsMarkSeen(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.messages.On("Page", mock.Anything, int64(10), int64(0), defaultPageSize).Return([]models.Message{}, nil)

	result, err := f.svc.Page(context.Background(), 2, 10, 0, 0)
	require.NoError(t, err)

	assert.False(t, result.HasMore)
	assert.Empty(t, result.Messages)
	f.seen.AssertNotCalled(t, "MarkSeen")
}

func TestEditOnlyByAuthor(t *testing.T) {
	f := newMessageFixture()

	f.messages.On("Get", mock.Anything, int64(100)).Return(textMessage(100, 10, 1, "hi"), nil)

	_, err := f.svc.Edit(context.Background(), 2, 100, "changed")
	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "Edit")
}

func TestEditDeletedMessage(t *testing.T) {
	f := newMessageFixture()

	deleted := textMessage(100, 10, 1, "hi")
	deleted.Deleted = true
	f.messages.On("Get", mock.Anything, int64(100)).Return(deleted, nil)

	_, err := f.svc.Edit(context.Background(), 1, 100, "changed")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteOnlyByAuthor(t *testing.T) {
	f := newMessageFixture()

	f.messages.On("Get", mock.Anything, int64(100)).Return(textMessage(100, 10, 1, "hi"), nil)

	err := f.svc.Delete(context.Background(), 2, 100)
	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "SoftDelete")
}

func TestDeleteByAuthor(t *testing.T) {
	f := newMessageFixture()

	f.messages.On("Get", mock.Anything, int64(100)).Return(textMessage(100, 10, 1, "hi"), nil)
	f.messages.On("SoftDelete", mock.Anything, int64(100)).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), 1, 100))
	f.messages.AssertExpectations(t)
}

func TestSearchQueryTooShort(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

	_, err := f.svc.Search(context.Background(), 1, 10, "x", 0)
	assert.ErrorIs(t, err, ErrQueryTooShort)
}

func TestSendAttachmentUnsupportedExtension(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

	up := Upload{Reader: strings.NewReader("x"), Filename: "malware.exe", Size: 1}
	_, err := f.svc.SendAttachment(context.Background(), 1, 10, up, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	f.store.AssertNotCalled(t, "Store")
}

func TestSendAttachmentTooLarge(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)

	up := Upload{Reader: strings.NewReader("x"), Filename: "big.pdf", Size: 4096}
	_, err := f.svc.SendAttachment(context.Background(), 1, 10, up, nil, nil)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	f.store.AssertNotCalled(t, "Store")
}

func TestSendAttachmentCleansUpOnAppendFailure(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.store.On("Store", mock.Anything, "conversations/10", "report.pdf").
		Return(storage.Ref{Path: "conversations/10/abc.pdf", Size: 3}, nil)
	f.messages.On("AppendWithAttachment", mock.Anything, int64(10), int64(1), models.KindFile,
		(*string)(nil), (*int64)(nil), mock.Anything,
	).Return(nil, nil, errors.New("db down"))
	f.store.On("Delete", "conversations/10/abc.pdf").Return(nil)

	up := Upload{Reader: strings.NewReader("pdf"), Filename: "report.pdf", Size: 3}
	_, err := f.svc.SendAttachment(context.Background(), 1, 10, up, nil, nil)
	require.Error(t, err)
	f.store.AssertExpectations(t)
}

func TestSendAttachmentImageMessage(t *testing.T) {
	f := newMessageFixture()

	caption := "look at <i>this</i>"
	stored := models.Attachment{ID: 7, MessageID: 200, Kind: models.AttachmentImage, Path: "conversations/10/abc.jpg", OriginalName: "cat.jpg", SizeBytes: 3}

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.store.On("Store", mock.Anything, "conversations/10", "cat.jpg").
		Return(storage.Ref{Path: "conversations/10/abc.jpg", Size: 3}, nil)
	f.messages.On("AppendWithAttachment", mock.Anything, int64(10), int64(1), models.KindImage,
		mock.MatchedBy(func(b *string) bool { return b != nil && *b == "look at <i>this</i>" }),
		(*int64)(nil), mock.Anything,
	).Return(models.Message{ID: 200, ConversationID: 10, AuthorID: 1, Kind: models.KindImage}, stored, nil)

	f.users.On("ByIDs", mock.Anything, mock.Anything).Return(map[int64]models.User{1: {ID: 1, Name: "Ana"}}, nil)
	f.attachments.On("ByMessageIDs", mock.Anything, []int64{200}).
		Return(map[int64][]models.Attachment{200: {stored}}, nil)
	f.seen.On("SeenBy", mock.Anything, mock.Anything).Return(map[int64][]models.SeenUser{}, nil)
	f.memberships.On("ActiveMemberIDs", mock.Anything, int64(10)).Return([]int64{1, 2}, nil)
	f.store.On("URLFor", "conversations/10/abc.jpg").Return("/storage/chat/conversations/10/abc.jpg")

	up := Upload{Reader: strings.NewReader("jpg"), Filename: "cat.jpg", Size: 3, Mime: "image/jpeg"}
	view, err := f.svc.SendAttachment(context.Background(), 1, 10, up, &caption, nil)
	require.NoError(t, err)

	assert.Equal(t, models.KindImage, view.Kind)
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, "/storage/chat/conversations/10/abc.jpg", view.Attachments[0].URL)
}

func TestDeleteAttachmentOnlyByAuthor(t *testing.T) {
	f := newMessageFixture()

	f.attachments.On("Get", mock.Anything, int64(7)).
		Return(models.Attachment{ID: 7, MessageID: 200, Path: "p"}, nil)
	f.messages.On("Get", mock.Anything, int64(200)).Return(textMessage(200, 10, 1, "hi"), nil)

	_, err := f.svc.DeleteAttachment(context.Background(), 2, 7)
	assert.ErrorIs(t, err, ErrForbidden)
	f.attachments.AssertNotCalled(t, "DeleteCascading")
}

func TestDeleteAttachmentCascade(t *testing.T) {
	f := newMessageFixture()

	att := models.Attachment{ID: 7, MessageID: 200, Path: "conversations/10/abc.pdf"}
	msg := models.Message{ID: 200, ConversationID: 10, AuthorID: 1, Kind: models.KindFile}

	f.attachments.On("Get", mock.Anything, int64(7)).Return(att, nil)
	f.messages.On("Get", mock.Anything, int64(200)).Return(msg, nil)
	f.attachments.On("DeleteCascading", mock.Anything, int64(7)).
		Return(repositories.CascadeResult{Attachment: att, Remaining: 0, MessageDeleted: true}, nil)
	f.store.On("Delete", "conversations/10/abc.pdf").Return(nil)

	result, err := f.svc.DeleteAttachment(context.Background(), 1, 7)
	require.NoError(t, err)

	assert.True(t, result.MessageDeleted)
	assert.Zero(t, result.Remaining)
	f.store.AssertExpectations(t)
}

func TestMarkSeenRedundantCall(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(2)).Return(true, nil)
	f.seen.On("MarkSeen", mock.Anything, int64(10), int64(2), mock.Anything).Return(nil)

	require.NoError(t, f.svc.MarkSeen(context.Background(), 2, 10))
	require.NoError(t, f.svc.MarkSeen(context.Background(), 2, 10))

	f.seen.AssertNumberOfCalls(t, "MarkSeen", 2)
	f.cache.AssertCalled(t, "Del", mock.Anything, "chat:status:2")
}

func TestSendInvalidatesRecipientStatus(t *testing.T) {
	f := newMessageFixture()

	f.memberships.On("IsActiveMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.messages.On("Append", mock.Anything, int64(10), int64(1), models.KindText, mock.Anything, (*int64)(nil)).
		Return(textMessage(100, 10, 1, "hi"), nil)
	f.expectViews(10, map[int64]models.User{1: {ID: 1, Name: "Ana"}}, []int64{1, 2, 3})

	_, err := f.svc.Send(context.Background(), 1, 10, "hi", models.KindText, nil)
	require.NoError(t, err)

	f.cache.AssertCalled(t, "Del", mock.Anything, "chat:status:2", "chat:status:3")
	f.cache.AssertNotCalled(t, "Del", mock.Anything, "chat:status:1")
}
