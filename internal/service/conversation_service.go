// Package service orchestrates the repositories into the conversation and
// messaging operations, enforcing the policy rules that sit above plain
// persistence: roster floors, admin and creator guards, name derivation and
// render-time visibility aggregation.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

var tracer = otel.Tracer("messaging-service/service")

const userSearchLimit = 10

// ConversationService owns the conversation lifecycle and roster policy.
type ConversationService struct {
	conversations repositories.ConversationRepository
	memberships   repositories.MembershipRepository
	messages      repositories.MessageRepository
	seen          repositories.SeenRepository
	users         repositories.UserRepository
	cache         cache.Cache
	statusTTL     time.Duration
	emitter       *telemetry.Emitter
	log           zerolog.Logger
}

func NewConversationService(
	conversations repositories.ConversationRepository,
	memberships repositories.MembershipRepository,
	messages repositories.MessageRepository,
	seen repositories.SeenRepository,
	users repositories.UserRepository,
	c cache.Cache,
	statusTTL time.Duration,
	emitter *telemetry.Emitter,
	log zerolog.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		memberships:   memberships,
		messages:      messages,
		seen:          seen,
		users:         users,
		cache:         c,
		statusTTL:     statusTTL,
		emitter:       emitter,
		log:           log.With().Str("component", "conversation-service").Logger(),
	}
}

// Create starts a conversation. The member set is deduplicated and always
// includes the creator; fewer than 2 distinct members is rejected. A
// conversation with more than 2 members or an explicit name is a group. The
// display name is never stored when auto-derived, so roster changes surface
// in it immediately.
func (s *ConversationService) Create(ctx context.Context, creatorID int64, memberIDs []int64, name *string) (ConversationView, error) {
	ctx, span := tracer.Start(ctx, "conversation.create")
	defer span.End()

	ids := dedupeWith(creatorID, memberIDs)
	if len(ids) < 2 {
		return ConversationView{}, ErrInsufficientMembers
	}

	found, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return ConversationView{}, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return ConversationView{}, fmt.Errorf("member %d: %w", id, repositories.ErrUserNotFound)
		}
	}

	hasName := name != nil && *name != ""
	isGroup := len(ids) > 2 || hasName
	var stored *string
	if hasName {
		stored = name
	}

	conv, err := s.conversations.CreateWithMembers(ctx, stored, isGroup, creatorID, ids)
	if err != nil {
		return ConversationView{}, err
	}

	s.emitter.Emit(ctx, telemetry.EventConversationCreated, conv.ID, creatorID, map[string]any{
		"member_ids": ids,
		"is_group":   isGroup,
	})
	s.log.Info().Int64("conversation_id", conv.ID).Int64("creator_id", creatorID).Int("members", len(ids)).Msg("conversation created")

	return s.view(ctx, conv, creatorID)
}

// List returns the caller's conversations, most recently active first,
// filtered by the per-user archive flag.
func (s *ConversationService) List(ctx context.Context, userID int64, archived bool) ([]ConversationView, error) {
	convs, err := s.conversations.ListForUser(ctx, userID, archived)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		v, err := s.view(ctx, conv, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns one conversation for an active member.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID int64) (ConversationView, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return ConversationView{}, err
	}
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return ConversationView{}, err
	}
	return s.view(ctx, conv, userID)
}

// Delete soft-deletes the conversation. Creator only.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID int64) error {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.CreatedBy != userID {
		return ErrForbidden
	}

	memberIDs, err := s.memberships.ActiveMemberIDs(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.conversations.SoftDelete(ctx, conversationID); err != nil {
		return err
	}

	s.emitter.Emit(ctx, telemetry.EventConversationDeleted, conversationID, userID, nil)
	s.InvalidateStatus(ctx, memberIDs...)
	return nil
}

// Archive hides the conversation for the caller only.
func (s *ConversationService) Archive(ctx context.Context, userID, conversationID int64) error {
	return s.setArchived(ctx, userID, conversationID, true)
}

// Unarchive reverses Archive.
func (s *ConversationService) Unarchive(ctx context.Context, userID, conversationID int64) error {
	return s.setArchived(ctx, userID, conversationID, false)
}

func (s *ConversationService) setArchived(ctx context.Context, userID, conversationID int64, archived bool) error {
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return err
	}
	return s.memberships.SetArchived(ctx, conversationID, userID, archived)
}

// Leave removes the caller from the roster. The repository enforces the
// floor rules: the last member dissolves the conversation, a two-member
// roster rejects the leave, and a departing sole admin hands the role to
// another member first.
func (s *ConversationService) Leave(ctx context.Context, userID, conversationID int64) (LeaveResult, error) {
	ctx, span := tracer.Start(ctx, "conversation.leave")
	defer span.End()

	res, err := s.memberships.Remove(ctx, conversationID, userID)
	if err != nil {
		return LeaveResult{}, err
	}

	if res.Dissolved {
		s.emitter.Emit(ctx, telemetry.EventConversationDissolved, conversationID, userID, nil)
	} else {
		s.emitter.Emit(ctx, telemetry.EventMemberLeft, conversationID, userID, nil)
		if res.PromotedUserID != 0 {
			s.emitter.Emit(ctx, telemetry.EventMemberPromoted, conversationID, userID, map[string]any{
				"user_id": res.PromotedUserID,
			})
		}
	}

	s.InvalidateStatus(ctx, userID)
	return LeaveResult{GroupDissolved: res.Dissolved, PromotedUserID: res.PromotedUserID}, nil
}

// AddMember adds a user to the roster. Admin only.
func (s *ConversationService) AddMember(ctx context.Context, actorID, conversationID, userID int64) error {
	if err := s.requireAdmin(ctx, conversationID, actorID); err != nil {
		return err
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.memberships.Add(ctx, conversationID, userID, false); err != nil {
		return err
	}
	s.emitter.Emit(ctx, telemetry.EventMemberAdded, conversationID, actorID, map[string]any{"user_id": userID})
	s.InvalidateStatus(ctx, userID)
	return nil
}

// RemoveMember removes another user from the roster. Admin only; the creator
// is never removable and the roster floor applies the same way it does for a
// voluntary leave.
func (s *ConversationService) RemoveMember(ctx context.Context, actorID, conversationID, userID int64) error {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, conversationID, actorID); err != nil {
		return err
	}
	if conv.CreatedBy == userID {
		return ErrCannotRemoveCreator
	}

	res, err := s.memberships.Remove(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	s.emitter.Emit(ctx, telemetry.EventMemberRemoved, conversationID, actorID, map[string]any{"user_id": userID})
	if res.PromotedUserID != 0 {
		s.emitter.Emit(ctx, telemetry.EventMemberPromoted, conversationID, actorID, map[string]any{
			"user_id": res.PromotedUserID,
		})
	}
	s.InvalidateStatus(ctx, userID)
	return nil
}

// SetAdmin grants or revokes the admin flag. Admin only. Revoking the sole
// admin's flag is allowed here; only removal triggers auto-promotion.
func (s *ConversationService) SetAdmin(ctx context.Context, actorID, conversationID, userID int64, isAdmin bool) error {
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, conversationID, actorID); err != nil {
		return err
	}
	return s.memberships.SetAdmin(ctx, conversationID, userID, isAdmin)
}

// SearchUsers looks up directory users to start a conversation with. Any
// authenticated caller may search; the caller is excluded from results.
func (s *ConversationService) SearchUsers(ctx context.Context, callerID int64, query string) ([]models.UserRef, error) {
	if len([]rune(query)) < 2 {
		return nil, ErrQueryTooShort
	}
	users, err := s.users.Search(ctx, callerID, query, userSearchLimit)
	if err != nil {
		return nil, err
	}
	refs := make([]models.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, u.Ref())
	}
	return refs, nil
}

// Status is the low-frequency heartbeat: total unread across the caller's
// active non-archived conversations plus the server clock. The total is
// cached briefly so heartbeat storms do not hammer the counting query.
func (s *ConversationService) Status(ctx context.Context, userID int64) (StatusResult, error) {
	now := time.Now().UTC()
	key := statusCacheKey(userID)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		if total, perr := strconv.Atoi(raw); perr == nil {
			return StatusResult{UnreadTotal: total, ServerTime: now}, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn().Err(err).Msg("status cache read failed")
	}

	total, err := s.seen.UnreadTotal(ctx, userID)
	if err != nil {
		return StatusResult{}, err
	}
	if err := s.cache.Set(ctx, key, strconv.Itoa(total), s.statusTTL); err != nil {
		s.log.Warn().Err(err).Msg("status cache write failed")
	}
	return StatusResult{UnreadTotal: total, ServerTime: now}, nil
}

// InvalidateStatus drops the cached unread totals of the given users so the
// next heartbeat recounts instead of serving a stale entry.
func (s *ConversationService) InvalidateStatus(ctx context.Context, userIDs ...int64) {
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

func statusCacheKey(userID int64) string {
	return "chat:status:" + strconv.FormatInt(userID, 10)
}

func (s *ConversationService) requireMember(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.memberships.IsActiveMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *ConversationService) requireAdmin(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.memberships.IsAdmin(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// view renders one conversation for a viewer: roster, derived name, unread
// count, activity flag, latest-message preview.
func (s *ConversationService) view(ctx context.Context, conv models.Conversation, viewerID int64) (ConversationView, error) {
	members, err := s.memberships.Members(ctx, conv.ID)
	if err != nil {
		return ConversationView{}, err
	}

	v := ConversationView{
		ID:        conv.ID,
		IsGroup:   conv.IsGroup,
		CreatedBy: conv.CreatedBy,
		CreatedAt: conv.CreatedAt,
		Members:   make([]MemberView, 0, len(members)),
	}

	var creatorName string
	var otherNames []string
	for _, m := range members {
		v.Members = append(v.Members, MemberView{
			ID:       m.UserID,
			Name:     m.Name,
			Email:    m.Email,
			IsAdmin:  m.IsAdmin,
			JoinedAt: m.JoinedAt,
		})
		if m.UserID == conv.CreatedBy {
			creatorName = m.Name
		} else {
			otherNames = append(otherNames, m.Name)
		}
		if m.UserID == viewerID {
			v.IsAdmin = m.IsAdmin
			v.IsArchived = m.IsArchived
		}
	}
	v.Name = models.DeriveDisplayName(conv.Name, otherNames, creatorName)

	unread, err := s.seen.UnreadCount(ctx, conv.ID, viewerID)
	if err != nil {
		return ConversationView{}, err
	}
	v.UnreadCount = unread

	hasNew, err := s.seen.HasUnseenLatest(ctx, conv.ID, viewerID)
	if err != nil {
		return ConversationView{}, err
	}
	v.HasNew = hasNew

	latest, err := s.messages.Latest(ctx, conv.ID)
	switch {
	case err == nil:
		author, uerr := s.users.Get(ctx, latest.AuthorID)
		if uerr != nil && !errors.Is(uerr, repositories.ErrUserNotFound) {
			return ConversationView{}, uerr
		}
		v.LastMessage = &LastMessageView{
			ID:         latest.ID,
			AuthorID:   latest.AuthorID,
			AuthorName: author.Name,
			Kind:       latest.Kind,
			Preview:    previewFor(latest),
			CreatedAt:  latest.CreatedAt,
		}
	case errors.Is(err, repositories.ErrMessageNotFound):
		// empty conversation
	default:
		return ConversationView{}, err
	}

	return v, nil
}

// dedupeWith returns the sorted unique union of first and rest.
func dedupeWith(first int64, rest []int64) []int64 {
	set := map[int64]struct{}{first: {}}
	for _, id := range rest {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
