package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// RemovalResult reports what a membership removal did besides removing.
type RemovalResult struct {
	// Dissolved is set when the removed user was the last active member and
	// the conversation was soft-deleted instead of keeping an empty shell.
	Dissolved bool
	// PromotedUserID names the member promoted to admin to keep the
	// conversation from ending up adminless; 0 when nobody was promoted.
	PromotedUserID int64
}

// MembershipRepository is the per-conversation roster of participants.
type MembershipRepository interface {
	Add(ctx context.Context, conversationID, userID int64, isAdmin bool) error
	Remove(ctx context.Context, conversationID, userID int64) (RemovalResult, error)
	SetAdmin(ctx context.Context, conversationID, userID int64, isAdmin bool) error
	SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error
	TouchLastSeen(ctx context.Context, conversationID, userID int64, at time.Time) error
	Get(ctx context.Context, conversationID, userID int64) (models.Membership, error)
	IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error)
	IsAdmin(ctx context.Context, conversationID, userID int64) (bool, error)
	Members(ctx context.Context, conversationID int64) ([]models.Member, error)
	ActiveMemberIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

// MembershipRepo is the sqlx implementation of MembershipRepository.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Add inserts an active membership under the conversation lock, so the
// insert cannot land in a conversation a concurrent removal is dissolving.
func (r *MembershipRepo) Add(ctx context.Context, conversationID, userID int64, isAdmin bool) error {
	return r.withConversationLock(ctx, conversationID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id, is_admin)
            VALUES ($1, $2, $3) ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, userID, isAdmin)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrAlreadyMember
		}
		return nil
	})
}

// lockConversation takes the row lock that serializes every roster mutation
// on one conversation. Missing or soft-deleted conversations surface as not
// found.
func lockConversation(ctx context.Context, tx *sqlx.Tx, conversationID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM conversations WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConversationNotFound
	}
	return err
}

func (r *MembershipRepo) withConversationLock(ctx context.Context, conversationID int64, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = lockConversation(ctx, tx, conversationID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// Remove deletes the membership inside one transaction scoped to the
// conversation. The conversation row is locked so concurrent removals cannot
// both observe the same roster: the member count floor and the at-least-one-
// admin invariant hold under races. When the removed user is the sole admin a
// remaining member is promoted before the removal completes; when they are
// the last member the conversation is soft-deleted instead.
func (r *MembershipRepo) Remove(ctx context.Context, conversationID, userID int64) (RemovalResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return RemovalResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = lockConversation(ctx, tx, conversationID); err != nil {
		return RemovalResult{}, err
	}

	var members []models.Membership
	err = tx.SelectContext(ctx, &members, `SELECT conversation_id, user_id, is_admin, is_archived, last_seen_at, joined_at
        FROM conversation_members WHERE conversation_id=$1 ORDER BY joined_at, user_id`, conversationID)
	if err != nil {
		return RemovalResult{}, err
	}

	plan, planErr := planRemoval(members, userID)
	if planErr != nil {
		err = planErr
		return RemovalResult{}, err
	}

	if plan.promoteUserID != 0 {
		if _, err = tx.ExecContext(ctx, `UPDATE conversation_members SET is_admin=TRUE WHERE conversation_id=$1 AND user_id=$2`, conversationID, plan.promoteUserID); err != nil {
			return RemovalResult{}, err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID); err != nil {
		return RemovalResult{}, err
	}

	if plan.dissolve {
		if _, err = tx.ExecContext(ctx, `UPDATE conversations SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1`, conversationID); err != nil {
			return RemovalResult{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return RemovalResult{}, err
	}
	return RemovalResult{Dissolved: plan.dissolve, PromotedUserID: plan.promoteUserID}, nil
}

// SetAdmin flips the admin flag under the conversation lock, so a concurrent
// removal always plans its promotion from the committed admin set. Demoting
// the sole admin is permitted here; whether to block that is the caller's
// policy decision.
func (r *MembershipRepo) SetAdmin(ctx context.Context, conversationID, userID int64, isAdmin bool) error {
	return r.withConversationLock(ctx, conversationID, func(tx *sqlx.Tx) error {
		return updateFlag(ctx, tx, `UPDATE conversation_members SET is_admin=$3 WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID, isAdmin)
	})
}

// SetArchived flips the per-user archive flag. Idempotent.
func (r *MembershipRepo) SetArchived(ctx context.Context, conversationID, userID int64, archived bool) error {
	return updateFlag(ctx, r.db, `UPDATE conversation_members SET is_archived=$3 WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID, archived)
}

// TouchLastSeen moves the user's last-seen watermark. Idempotent.
func (r *MembershipRepo) TouchLastSeen(ctx context.Context, conversationID, userID int64, at time.Time) error {
	return updateFlag(ctx, r.db, `UPDATE conversation_members SET last_seen_at=$3 WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID, at)
}

func updateFlag(ctx context.Context, ext sqlx.ExtContext, query string, conversationID, userID int64, value any) error {
	res, err := ext.ExecContext(ctx, query, conversationID, userID, value)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

// Get fetches one membership row.
func (r *MembershipRepo) Get(ctx context.Context, conversationID, userID int64) (models.Membership, error) {
	var m models.Membership
	err := r.db.GetContext(ctx, &m, `SELECT conversation_id, user_id, is_admin, is_archived, last_seen_at, joined_at
        FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, ErrNotMember
	}
	return m, err
}

// IsActiveMember checks membership of a non-deleted conversation.
func (r *MembershipRepo) IsActiveMember(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM conversation_members cm
        JOIN conversations c ON c.id = cm.conversation_id AND c.deleted_at IS NULL
        WHERE cm.conversation_id=$1 AND cm.user_id=$2)`, conversationID, userID)
	return exists, err
}

// IsAdmin checks the admin flag.
func (r *MembershipRepo) IsAdmin(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(
        SELECT 1 FROM conversation_members WHERE conversation_id=$1 AND user_id=$2 AND is_admin=TRUE)`, conversationID, userID)
	return exists, err
}

// Members returns the roster joined with the user directory.
func (r *MembershipRepo) Members(ctx context.Context, conversationID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members, `SELECT cm.conversation_id, cm.user_id, cm.is_admin, cm.is_archived,
            cm.last_seen_at, cm.joined_at, u.name, u.email
        FROM conversation_members cm
        JOIN users u ON u.id = cm.user_id
        WHERE cm.conversation_id=$1
        ORDER BY cm.joined_at, cm.user_id`, conversationID)
	return members, err
}

// ActiveMemberIDs returns the user ids on the roster.
func (r *MembershipRepo) ActiveMemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM conversation_members WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return ids, err
}
