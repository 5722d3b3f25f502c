package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/sanitize"
	"messaging-service/internal/storage"
	"messaging-service/internal/telemetry"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultSearchSize = 20
	maxSearchSize     = 50
)

// Upload is an incoming attachment file.
type Upload struct {
	Reader   io.Reader
	Filename string
	Size     int64
	Mime     string
}

// MessageService owns the message log, visibility tracking and the
// attachment lifecycle.
type MessageService struct {
	messages    repositories.MessageRepository
	memberships repositories.MembershipRepository
	seen        repositories.SeenRepository
	attachments repositories.AttachmentRepository
	users       repositories.UserRepository
	store       storage.Store
	cache       cache.Cache
	maxBytes    int64
	emitter     *telemetry.Emitter
	log         zerolog.Logger
}

func NewMessageService(
	messages repositories.MessageRepository,
	memberships repositories.MembershipRepository,
	seen repositories.SeenRepository,
	attachments repositories.AttachmentRepository,
	users repositories.UserRepository,
	store storage.Store,
	c cache.Cache,
	maxBytes int64,
	emitter *telemetry.Emitter,
	log zerolog.Logger,
) *MessageService {
	if maxBytes <= 0 {
		maxBytes = models.DefaultMaxAttachmentBytes
	}
	return &MessageService{
		messages:    messages,
		memberships: memberships,
		seen:        seen,
		attachments: attachments,
		users:       users,
		store:       store,
		cache:       c,
		maxBytes:    maxBytes,
		emitter:     emitter,
		log:         log.With().Str("component", "message-service").Logger(),
	}
}

// Send appends a message. The author must be an active member; the body is
// sanitized before storage and a text message may not end up empty. The
// append also moves the author's last-seen watermark so their own message
// never counts as unread for them.
func (s *MessageService) Send(ctx context.Context, userID, conversationID int64, body string, kind models.MessageKind, parentID *int64) (MessageView, error) {
	ctx, span := tracer.Start(ctx, "message.send")
	defer span.End()

	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return MessageView{}, err
	}
	if kind == "" {
		kind = models.KindText
	}
	if !models.ValidKind(kind) {
		return MessageView{}, ErrInvalidKind
	}

	clean := sanitize.Body(body)
	if clean == "" {
		return MessageView{}, ErrEmptyBody
	}

	msg, err := s.messages.Append(ctx, conversationID, userID, kind, &clean, parentID)
	if err != nil {
		return MessageView{}, err
	}

	observability.IncMessageSent(string(kind))
	s.emitter.Emit(ctx, telemetry.EventMessageSent, conversationID, userID, map[string]any{
		"message_id": msg.ID,
		"kind":       string(kind),
	})
	s.invalidateRecipientStatus(ctx, conversationID, userID)

	return s.viewOne(ctx, msg, userID)
}

// SendAttachment stores the file and appends the carrying message in one
// compound operation: a failed append removes the stored file again so no
// orphan binary survives. The extension allow-list and the size ceiling are
// both checked here even though the store re-checks the size.
func (s *MessageService) SendAttachment(ctx context.Context, userID, conversationID int64, up Upload, caption *string, parentID *int64) (MessageView, error) {
	ctx, span := tracer.Start(ctx, "message.send_attachment")
	defer span.End()

	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return MessageView{}, err
	}

	ext := filepath.Ext(up.Filename)
	attKind, ok := models.AttachmentKindForExtension(ext)
	if !ok {
		return MessageView{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if up.Size > s.maxBytes {
		return MessageView{}, ErrFileTooLarge
	}

	ref, err := s.store.Store(up.Reader, fmt.Sprintf("conversations/%d", conversationID), up.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return MessageView{}, ErrFileTooLarge
		}
		return MessageView{}, err
	}

	var body *string
	if caption != nil {
		if clean := sanitize.Body(*caption); clean != "" {
			body = &clean
		}
	}

	att := models.Attachment{
		Kind:         attKind,
		Path:         ref.Path,
		OriginalName: up.Filename,
		Mime:         up.Mime,
		SizeBytes:    ref.Size,
	}

	msg, _, err := s.messages.AppendWithAttachment(ctx, conversationID, userID, attKind.MessageKind(), body, parentID, att)
	if err != nil {
		if derr := s.store.Delete(ref.Path); derr != nil {
			s.log.Error().Err(derr).Str("path", ref.Path).Msg("orphan attachment cleanup failed")
		}
		return MessageView{}, err
	}

	observability.IncMessageSent(string(attKind.MessageKind()))
	observability.AddAttachmentBytes(ref.Size)
	s.emitter.Emit(ctx, telemetry.EventMessageSent, conversationID, userID, map[string]any{
		"message_id": msg.ID,
		"kind":       string(msg.Kind),
		"attachment": up.Filename,
	})
	s.invalidateRecipientStatus(ctx, conversationID, userID)

	return s.viewOne(ctx, msg, userID)
}

// Edit replaces the body of the caller's own non-deleted message.
func (s *MessageService) Edit(ctx context.Context, userID, messageID int64, body string) (MessageView, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return MessageView{}, err
	}
	if msg.AuthorID != userID || msg.Deleted {
		return MessageView{}, ErrForbidden
	}

	clean := sanitize.Body(body)
	if clean == "" {
		return MessageView{}, ErrEmptyBody
	}

	updated, err := s.messages.Edit(ctx, messageID, clean)
	if err != nil {
		return MessageView{}, err
	}

	s.emitter.Emit(ctx, telemetry.EventMessageEdited, msg.ConversationID, userID, map[string]any{"message_id": messageID})
	return s.viewOne(ctx, updated, userID)
}

// Delete soft-deletes the caller's own message. The row stays addressable
// for reply chains; only its content is nulled on render.
func (s *MessageService) Delete(ctx context.Context, userID, messageID int64) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != userID || msg.Deleted {
		return ErrForbidden
	}
	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return err
	}
	s.emitter.Emit(ctx, telemetry.EventMessageDeleted, msg.ConversationID, userID, map[string]any{"message_id": messageID})
	return nil
}

// Page returns a backward page: the newest messages, or the ones strictly
// older than beforeID when scrolling up, oldest-first within the page.
// Returning messages to a member implicitly marks them seen.
func (s *MessageService) Page(ctx context.Context, userID, conversationID, beforeID int64, limit int) (PageResult, error) {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return PageResult{}, err
	}
	limit = clamp(limit, defaultPageSize, maxPageSize)

	msgs, err := s.messages.Page(ctx, conversationID, beforeID, limit)
	if err != nil {
		return PageResult{}, err
	}
	observability.IncPoll("page")

	if len(msgs) > 0 {
		if err := s.markSeen(ctx, conversationID, userID); err != nil {
			return PageResult{}, err
		}
	}

	views, err := s.views(ctx, conversationID, userID, msgs)
	if err != nil {
		return PageResult{}, err
	}
	return PageResult{Messages: views, HasMore: len(msgs) == limit}, nil
}

// Poll returns messages strictly newer than afterID, oldest-first. An absent
// or zero cursor yields an empty result, never the full history: the client
// is expected to do an initial page load first.
func (s *MessageService) Poll(ctx context.Context, userID, conversationID, afterID int64) (PollResult, error) {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return PollResult{}, err
	}
	observability.IncPoll("since")

	if afterID <= 0 {
		return PollResult{Messages: []MessageView{}}, nil
	}

	msgs, err := s.messages.Since(ctx, conversationID, afterID)
	if err != nil {
		return PollResult{}, err
	}

	if len(msgs) > 0 {
		if err := s.markSeen(ctx, conversationID, userID); err != nil {
			return PollResult{}, err
		}
	}

	views, err := s.views(ctx, conversationID, userID, msgs)
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Messages: views, NewCount: len(views)}, nil
}

// Search matches non-deleted bodies case-insensitively, newest-first.
func (s *MessageService) Search(ctx context.Context, userID, conversationID int64, query string, limit int) ([]MessageView, error) {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if len([]rune(query)) < 2 {
		return nil, ErrQueryTooShort
	}
	limit = clamp(limit, defaultSearchSize, maxSearchSize)

	msgs, err := s.messages.Search(ctx, conversationID, query, limit)
	if err != nil {
		return nil, err
	}
	observability.IncPoll("search")
	return s.views(ctx, conversationID, userID, msgs)
}

// MarkSeen records the caller as having observed everything currently in the
// conversation. Safe to call redundantly.
func (s *MessageService) MarkSeen(ctx context.Context, userID, conversationID int64) error {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.markSeen(ctx, conversationID, userID); err != nil {
		return err
	}
	s.emitter.Emit(ctx, telemetry.EventMessagesSeen, conversationID, userID, nil)
	return nil
}

func (s *MessageService) markSeen(ctx context.Context, conversationID, userID int64) error {
	if err := s.seen.MarkSeen(ctx, conversationID, userID, time.Now().UTC()); err != nil {
		return err
	}
	observability.IncSeenMark()
	s.invalidateStatus(ctx, userID)
	return nil
}

// invalidateRecipientStatus drops the other members' cached unread totals
// after a send; the author's own total is untouched by their message.
func (s *MessageService) invalidateRecipientStatus(ctx context.Context, conversationID, authorID int64) {
	ids, err := s.memberships.ActiveMemberIDs(ctx, conversationID)
	if err != nil {
		s.log.Warn().Err(err).Msg("status cache invalidation failed")
		return
	}
	recipients := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != authorID {
			recipients = append(recipients, id)
		}
	}
	s.invalidateStatus(ctx, recipients...)
}

func (s *MessageService) invalidateStatus(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, statusCacheKey(id))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Msg("status cache invalidation failed")
	}
}

// DeleteAttachment removes an attachment from the caller's own message. The
// repository deletes the row, re-counts what remains and soft-deletes a
// body-less message that lost its last attachment, all in one transaction;
// the binary is removed afterwards, best-effort.
func (s *MessageService) DeleteAttachment(ctx context.Context, userID, attachmentID int64) (DeleteAttachmentResult, error) {
	att, err := s.attachments.Get(ctx, attachmentID)
	if err != nil {
		return DeleteAttachmentResult{}, err
	}
	msg, err := s.messages.Get(ctx, att.MessageID)
	if err != nil {
		return DeleteAttachmentResult{}, err
	}
	if msg.AuthorID != userID {
		return DeleteAttachmentResult{}, ErrForbidden
	}

	res, err := s.attachments.DeleteCascading(ctx, attachmentID)
	if err != nil {
		return DeleteAttachmentResult{}, err
	}

	if err := s.store.Delete(res.Attachment.Path); err != nil {
		s.log.Error().Err(err).Str("path", res.Attachment.Path).Msg("attachment binary delete failed")
	}

	s.emitter.Emit(ctx, telemetry.EventAttachmentDeleted, msg.ConversationID, userID, map[string]any{
		"attachment_id":   attachmentID,
		"message_id":      msg.ID,
		"message_deleted": res.MessageDeleted,
	})

	return DeleteAttachmentResult{
		AttachmentID:   attachmentID,
		Remaining:      res.Remaining,
		MessageDeleted: res.MessageDeleted,
	}, nil
}

func (s *MessageService) requireMember(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.memberships.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// views renders a batch of messages with their seen state, attachments and
// reply previews resolved in bulk.
func (s *MessageService) views(ctx context.Context, conversationID, viewerID int64, msgs []models.Message) ([]MessageView, error) {
	if len(msgs) == 0 {
		return []MessageView{}, nil
	}

	ids := make([]int64, 0, len(msgs))
	parentIDs := make([]int64, 0)
	userIDs := make(map[int64]struct{})
	for _, m := range msgs {
		ids = append(ids, m.ID)
		userIDs[m.AuthorID] = struct{}{}
		if m.ParentID != nil {
			parentIDs = append(parentIDs, *m.ParentID)
		}
	}

	parents := map[int64]models.Message{}
	if len(parentIDs) > 0 {
		var err error
		parents, err = s.messages.ByIDs(ctx, parentIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			userIDs[p.AuthorID] = struct{}{}
		}
	}

	uids := make([]int64, 0, len(userIDs))
	for id := range userIDs {
		uids = append(uids, id)
	}
	users, err := s.users.ByIDs(ctx, uids)
	if err != nil {
		return nil, err
	}

	attachments, err := s.attachments.ByMessageIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	seenBy, err := s.seen.SeenBy(ctx, ids)
	if err != nil {
		return nil, err
	}

	activeIDs, err := s.memberships.ActiveMemberIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Author:         users[m.AuthorID].Ref(),
			Kind:           m.Kind,
			Edited:         m.Edited,
			Deleted:        m.Deleted,
			IsOwn:          m.AuthorID == viewerID,
			CreatedAt:      m.CreatedAt,
			UpdatedAt:      m.UpdatedAt,
			SeenBy:         []models.SeenUser{},
			Attachments:    []AttachmentView{},
		}
		if !m.Deleted {
			v.Body = m.Body
		}

		if m.ParentID != nil {
			if p, ok := parents[*m.ParentID]; ok {
				v.Parent = &ReplyView{
					ID:         p.ID,
					AuthorID:   p.AuthorID,
					AuthorName: users[p.AuthorID].Name,
					Preview:    previewFor(p),
					Deleted:    p.Deleted,
				}
			}
		}

		for _, a := range attachments[m.ID] {
			v.Attachments = append(v.Attachments, AttachmentView{
				ID:           a.ID,
				Kind:         a.Kind,
				OriginalName: a.OriginalName,
				Mime:         a.Mime,
				SizeBytes:    a.SizeBytes,
				URL:          s.store.URLFor(a.Path),
				CreatedAt:    a.CreatedAt,
			})
		}

		observers := seenBy[m.ID]
		if observers != nil {
			v.SeenBy = observers
		}
		v.SeenCount = len(observers)
		seenIDs := make([]int64, 0, len(observers))
		for _, o := range observers {
			seenIDs = append(seenIDs, o.UserID)
		}
		v.SeenByEveryone = models.SeenByEveryone(m.AuthorID, activeIDs, seenIDs)

		views = append(views, v)
	}
	return views, nil
}

func (s *MessageService) viewOne(ctx context.Context, msg models.Message, viewerID int64) (MessageView, error) {
	views, err := s.views(ctx, msg.ConversationID, viewerID, []models.Message{msg})
	if err != nil {
		return MessageView{}, err
	}
	return views[0], nil
}

func previewFor(m models.Message) string {
	return sanitize.Preview(m.Kind, m.Body, m.Deleted)
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
