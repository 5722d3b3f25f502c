package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

const messageColumns = `id, conversation_id, author_id, parent_id, kind, body, edited, deleted, created_at, updated_at`

// MessageRepository is the append-mostly ordered message log.
type MessageRepository interface {
	Append(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64) (models.Message, error)
	AppendWithAttachment(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64, att models.Attachment) (models.Message, models.Attachment, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	ByIDs(ctx context.Context, messageIDs []int64) (map[int64]models.Message, error)
	Edit(ctx context.Context, messageID int64, body string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int64) error
	Page(ctx context.Context, conversationID, beforeID int64, limit int) ([]models.Message, error)
	Since(ctx context.Context, conversationID, afterID int64) ([]models.Message, error)
	Search(ctx context.Context, conversationID int64, query string, limit int) ([]models.Message, error)
	Latest(ctx context.Context, conversationID int64) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message and advances the author's last-seen watermark in
// the same transaction, so the author's own message never counts against
// their unread total. The message is only observable to pollers once the
// transaction commits.
func (r *MessageRepo) Append(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	msg, err = appendMessage(ctx, tx, conversationID, authorID, kind, body, parentID)
	if err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// AppendWithAttachment stores the message and its attachment row atomically;
// a failure on either side persists nothing.
func (r *MessageRepo) AppendWithAttachment(ctx context.Context, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64, att models.Attachment) (models.Message, models.Attachment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, models.Attachment{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	msg, err = appendMessage(ctx, tx, conversationID, authorID, kind, body, parentID)
	if err != nil {
		return models.Message{}, models.Attachment{}, err
	}

	var stored models.Attachment
	err = tx.QueryRowxContext(ctx, `INSERT INTO message_attachments (message_id, kind, path, original_name, mime, size_bytes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, message_id, kind, path, original_name, mime, size_bytes, created_at`,
		msg.ID, att.Kind, att.Path, att.OriginalName, att.Mime, att.SizeBytes).StructScan(&stored)
	if err != nil {
		return models.Message{}, models.Attachment{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, models.Attachment{}, err
	}
	return msg, stored, nil
}

func appendMessage(ctx context.Context, tx *sqlx.Tx, conversationID, authorID int64, kind models.MessageKind, body *string, parentID *int64) (models.Message, error) {
	if parentID != nil {
		var parentConv int64
		err := tx.GetContext(ctx, &parentConv, `SELECT conversation_id FROM messages WHERE id=$1`, *parentID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrInvalidParent
		}
		if err != nil {
			return models.Message{}, err
		}
		if parentConv != conversationID {
			return models.Message{}, ErrInvalidParent
		}
	}

	var msg models.Message
	err := tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, author_id, parent_id, kind, body)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		conversationID, authorID, parentID, kind, body).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversation_members SET last_seen_at=NOW()
        WHERE conversation_id=$1 AND user_id=$2`, conversationID, authorID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message, deleted or not.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ByIDs fetches a batch of messages keyed by id, used for reply previews.
func (r *MessageRepo) ByIDs(ctx context.Context, messageIDs []int64) (map[int64]models.Message, error) {
	result := make(map[int64]models.Message, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+messageColumns+` FROM messages WHERE id IN (?)`, messageIDs)
	if err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.ID] = m
	}
	return result, nil
}

// Edit replaces the body and flags the message edited.
func (r *MessageRepo) Edit(ctx context.Context, messageID int64, body string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET body=$2, edited=TRUE, updated_at=NOW()
        WHERE id=$1 RETURNING `+messageColumns, messageID, body).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete flags the message deleted; the row stays for reply-chain
// integrity and the body is nulled on render.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted=TRUE, updated_at=NOW() WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Page returns up to limit messages in ascending (created_at, id) order. A
// non-zero beforeID restricts to strictly older messages for backward
// scrolling; zero returns the newest page.
func (r *MessageRepo) Page(ctx context.Context, conversationID, beforeID int64, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1`
	args := []any{conversationID}
	if beforeID > 0 {
		query += ` AND id < $2`
		args = append(args, beforeID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + strconv.Itoa(limit)

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	// newest-first from the database, ascending for the client
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Since returns messages with id strictly greater than afterID, oldest
// first. Callers handle the afterID=0 boundary; this method does not.
func (r *MessageRepo) Since(ctx context.Context, conversationID, afterID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 AND id > $2
        ORDER BY created_at, id`, conversationID, afterID)
	return msgs, err
}

// Search matches non-deleted bodies case-insensitively, newest first.
func (r *MessageRepo) Search(ctx context.Context, conversationID int64, query string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 AND deleted=FALSE AND body ILIKE '%' || $2 || '%'
        ORDER BY created_at DESC, id DESC LIMIT `+strconv.Itoa(limit), conversationID, query)
	return msgs, err
}

// Latest returns the newest non-deleted message.
func (r *MessageRepo) Latest(ctx context.Context, conversationID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 AND deleted=FALSE
        ORDER BY created_at DESC, id DESC LIMIT 1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
