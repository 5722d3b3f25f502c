package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// SeenRepository records which participants have observed which messages and
// derives unread aggregates.
type SeenRepository interface {
	MarkSeen(ctx context.Context, conversationID, userID int64, at time.Time) error
	SeenBy(ctx context.Context, messageIDs []int64) (map[int64][]models.SeenUser, error)
	UnreadCount(ctx context.Context, conversationID, userID int64) (int, error)
	UnreadTotal(ctx context.Context, userID int64) (int, error)
	HasUnseenLatest(ctx context.Context, conversationID, userID int64) (bool, error)
}

// SeenRepo is the sqlx implementation of SeenRepository.
type SeenRepo struct {
	db *sqlx.DB
}

// NewSeenRepo constructs a SeenRepo.
func NewSeenRepo(db *sqlx.DB) *SeenRepo {
	return &SeenRepo{db: db}
}

// MarkSeen inserts a seen record for every non-deleted message in the
// conversation authored by someone else and not yet seen by the user, and
// moves the user's last-seen watermark. Redundant calls are no-ops: the
// insert is conflict-guarded and the watermark update is a plain overwrite.
func (r *SeenRepo) MarkSeen(ctx context.Context, conversationID, userID int64, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_views (message_id, user_id, created_at)
        SELECT m.id, $2, $3 FROM messages m
        WHERE m.conversation_id=$1 AND m.deleted=FALSE AND m.author_id<>$2
        ON CONFLICT (message_id, user_id) DO NOTHING`, conversationID, userID, at); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversation_members SET last_seen_at=$3
        WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID, at); err != nil {
		return err
	}

	return tx.Commit()
}

// SeenBy returns, per message, the observers joined with their names.
func (r *SeenRepo) SeenBy(ctx context.Context, messageIDs []int64) (map[int64][]models.SeenUser, error) {
	result := make(map[int64][]models.SeenUser, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT mv.message_id, mv.user_id, u.name
        FROM message_views mv JOIN users u ON u.id = mv.user_id
        WHERE mv.message_id IN (?) ORDER BY mv.created_at`, messageIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		MessageID int64  `db:"message_id"`
		UserID    int64  `db:"user_id"`
		Name      string `db:"name"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.MessageID] = append(result[row.MessageID], models.SeenUser{UserID: row.UserID, Name: row.Name})
	}
	return result, nil
}

// UnreadCount counts unread messages for one membership. A user who never
// opened the conversation has everything unread; otherwise only non-deleted
// messages from others newer than their watermark count.
func (r *SeenRepo) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages m
        JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $2
        WHERE m.conversation_id=$1 AND m.deleted=FALSE
          AND (cm.last_seen_at IS NULL
               OR (m.author_id <> $2 AND m.created_at > cm.last_seen_at))`, conversationID, userID)
	return count, err
}

// UnreadTotal sums unread counts across the user's active, non-archived
// conversations without loading any bodies.
func (r *SeenRepo) UnreadTotal(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages m
        JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $1
        JOIN conversations c ON c.id = m.conversation_id AND c.deleted_at IS NULL
        WHERE cm.is_archived=FALSE AND m.deleted=FALSE
          AND (cm.last_seen_at IS NULL
               OR (m.author_id <> $1 AND m.created_at > cm.last_seen_at))`, userID)
	return total, err
}

// HasUnseenLatest reports whether the newest non-deleted message is from
// someone else and still unseen by the user. Cheaper than a full unread
// count for activity badges.
func (r *SeenRepo) HasUnseenLatest(ctx context.Context, conversationID, userID int64) (bool, error) {
	var unseen bool
	err := r.db.GetContext(ctx, &unseen, `SELECT EXISTS(
        SELECT 1 FROM messages m
        WHERE m.id = (SELECT id FROM messages WHERE conversation_id=$1 AND deleted=FALSE
                      ORDER BY created_at DESC, id DESC LIMIT 1)
          AND m.author_id <> $2
          AND NOT EXISTS (SELECT 1 FROM message_views mv WHERE mv.message_id = m.id AND mv.user_id = $2))`,
		conversationID, userID)
	return unseen, err
}
