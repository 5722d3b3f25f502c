// Package mocks holds the testify mocks shared by service and handler tests.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/storage"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateWithMembers(ctx context.Context, name *string, isGroup bool, creatorID int64, memberIDs []int64) (models.Conversation, error) {
	args := m.Called(ctx, name, isGroup, creatorID, memberIDs)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64, archived bool) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, archived)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) SoftDelete(ctx context.Context, conversationID int64) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MembershipRepositoryMock struct {
	mock.Mock
}

func (m *MembershipRepositoryMock) Add(ctx context.Context, conversationID, userID int64, isAdmin bool) error {
	args := m.Called(ctx, conversationID, userID, isAdmin)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) Remove(ctx context.Context, conversationID, userID int64) (repositories.RemovalResult, error) {
	args := m.Called(ctx, conversationID, userID)
	var res repositories.RemovalResult
	if val := args.Get(0); val != nil {
		res = val.(repositories.RemovalResult)
	}
	return res, args.Error(1)
}

func (m *MembershipRepositoryMock) SetAdmin(ctx context.Context, conversationID, userID int64, isAdmin bool) error {
	args := m.Called(ctx, conversationID, userID, isAdmin)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error {
	args := m.Called(ctx, conversationID, userID, archived)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) TouchLastSeen(ctx context.Context, conversationID, userID int64, at time.Time) error {
	args := m.Called(ctx, conversationID, userID, at)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) Get(ctx context.Context, conversationID, userID int64) (models.Membership, error) {
	args := m.Called(ctx, conversationID, userID)
	var mem models.Membership
	if val := args.Get(0); val != nil {
		mem = val.(models.Membership)
	}
	return mem, args.Error(1)
}

func (m *MembershipRepositoryMock) IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MembershipRepositoryMock) IsAdmin(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MembershipRepositoryMock) Members(ctx context.Context, conversationID int64) ([]models.Member, error) {
	args := m.Called(ctx, conversationID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MembershipRepositoryMock) ActiveMemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64) (models.Message, error) {
	args := m.Called(ctx, conversationID, authorID, kind, body, parentID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) AppendWithAttachment(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64, att models.Attachment) (models.Message, models.Attachment, error) {
	args := m.Called(ctx, conversationID, authorID, kind, body, parentID, att)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	var stored models.Attachment
	if val := args.Get(1); val != nil {
		stored = val.(models.Attachment)
	}
	return msg, stored, args.Error(2)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ByIDs(ctx context.Context, messageIDs []int64) (map[int64]models.Message, error) {
	args := m.Called(ctx, messageIDs)
	var msgs map[int64]models.Message
	if val := args.Get(0); val != nil {
		msgs = val.(map[int64]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID int64, body string) (models.Message, error) {
	args := m.Called(ctx, messageID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Page(ctx context.Context, conversationID, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Since(ctx context.Context, conversationID, afterID int64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, afterID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Search(ctx context.Context, conversationID int64, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, query, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, conversationID int64) (models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type SeenRepositoryMock struct {
	mock.Mock
}

func (m *SeenRepositoryMock) MarkSeen(ctx context.Context, conversationID, userID int64, at time.Time) error {
	args := m.Called(ctx, conversationID, userID, at)
	return args.Error(0)
}

func (m *SeenRepositoryMock) SeenBy(ctx context.Context, messageIDs []int64) (map[int64][]models.SeenUser, error) {
	args := m.Called(ctx, messageIDs)
	var seen map[int64][]models.SeenUser
	if val := args.Get(0); val != nil {
		seen = val.(map[int64][]models.SeenUser)
	}
	return seen, args.Error(1)
}

func (m *SeenRepositoryMock) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *SeenRepositoryMock) UnreadTotal(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *SeenRepositoryMock) HasUnseenLatest(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type AttachmentRepositoryMock struct {
	mock.Mock
}

func (m *AttachmentRepositoryMock) Get(ctx context.Context, attachmentID int64) (models.Attachment, error) {
	args := m.Called(ctx, attachmentID)
	var att models.Attachment
	if val := args.Get(0); val != nil {
		att = val.(models.Attachment)
	}
	return att, args.Error(1)
}

func (m *AttachmentRepositoryMock) ByMessageIDs(ctx context.Context, messageIDs []int64) (map[int64][]models.Attachment, error) {
	args := m.Called(ctx, messageIDs)
	var atts map[int64][]models.Attachment
	if val := args.Get(0); val != nil {
		atts = val.(map[int64][]models.Attachment)
	}
	return atts, args.Error(1)
}

func (m *AttachmentRepositoryMock) DeleteCascading(ctx context.Context, attachmentID int64) (repositories.CascadeResult, error) {
	args := m.Called(ctx, attachmentID)
	var res repositories.CascadeResult
	if val := args.Get(0); val != nil {
		res = val.(repositories.CascadeResult)
	}
	return res, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ByIDs(ctx context.Context, userIDs []int64) (map[int64]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users map[int64]models.User
	if val := args.Get(0); val != nil {
		users = val.(map[int64]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) GetByToken(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Search(ctx context.Context, excludeUserID int64, query string, limit int) ([]models.User, error) {
	args := m.Called(ctx, excludeUserID, query, limit)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Store(r io.Reader, namespace, filename string) (storage.Ref, error) {
	args := m.Called(r, namespace, filename)
	var ref storage.Ref
	if val := args.Get(0); val != nil {
		ref = val.(storage.Ref)
	}
	return ref, args.Error(1)
}

func (m *StoreMock) URLFor(path string) string {
	args := m.Called(path)
	return args.String(0)
}

func (m *StoreMock) Delete(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *CacheMock) Del(ctx context.Context, keys ...string) error {
	callArgs := make([]any, 0, len(keys)+1)
	callArgs = append(callArgs, ctx)
	for _, k := range keys {
		callArgs = append(callArgs, k)
	}
	args := m.Called(callArgs...)
	return args.Error(0)
}

func (m *CacheMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
