package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateWithMembers(ctx context.Context, name *string, isGroup bool, creatorID int64, memberIDs []int64) (models.Conversation, error)
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int64, archived bool) ([]models.Conversation, error)
	SoftDelete(ctx context.Context, conversationID int64) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateWithMembers creates the conversation and its roster atomically. The
// creator joins as admin, everyone else as a regular member. memberIDs is
// expected deduplicated and to include the creator.
func (r *ConversationRepo) CreateWithMembers(ctx context.Context, name *string, isGroup bool, creatorID int64, memberIDs []int64) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	err = tx.QueryRowxContext(ctx, `INSERT INTO conversations (name, is_group, created_by)
        VALUES ($1, $2, $3)
        RETURNING id, name, is_group, created_by, created_at, updated_at, deleted_at`,
		name, isGroup, creatorID).StructScan(&conv)
	if err != nil {
		return models.Conversation{}, err
	}

	for _, id := range memberIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id, is_admin)
            VALUES ($1, $2, $3)`, conv.ID, id, id == creatorID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a non-deleted conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, name, is_group, created_by, created_at, updated_at, deleted_at
        FROM conversations WHERE id=$1 AND deleted_at IS NULL`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations filtered by their archive
// flag, most recent message activity first; conversations with no messages
// sort last by creation time.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64, archived bool) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT c.id, c.name, c.is_group, c.created_by, c.created_at, c.updated_at, c.deleted_at
        FROM conversations c
        JOIN conversation_members cm ON cm.conversation_id = c.id
        WHERE cm.user_id=$1 AND cm.is_archived=$2 AND c.deleted_at IS NULL
        ORDER BY (SELECT MAX(m.created_at) FROM messages m
                  WHERE m.conversation_id = c.id AND m.deleted = FALSE) DESC NULLS LAST,
                 c.created_at DESC`, userID, archived)
	return convs, err
}

// SoftDelete marks the conversation deleted. Terminal; nothing re-activates
// a deleted conversation.
func (r *ConversationRepo) SoftDelete(ctx context.Context, conversationID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET deleted_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND deleted_at IS NULL`, conversationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}
