package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// CascadeResult describes the outcome of an attachment delete.
type CascadeResult struct {
	Attachment models.Attachment
	// Remaining attachments on the message after the delete committed.
	Remaining int
	// MessageDeleted is set when the cascade soft-deleted a body-less
	// message that lost its last attachment.
	MessageDeleted bool
}

// AttachmentRepository persists attachment metadata rows.
type AttachmentRepository interface {
	Get(ctx context.Context, attachmentID int64) (models.Attachment, error)
	ByMessageIDs(ctx context.Context, messageIDs []int64) (map[int64][]models.Attachment, error)
	DeleteCascading(ctx context.Context, attachmentID int64) (CascadeResult, error)
}

// AttachmentRepo is the sqlx implementation of AttachmentRepository.
type AttachmentRepo struct {
	db *sqlx.DB
}

// NewAttachmentRepo constructs an AttachmentRepo.
func NewAttachmentRepo(db *sqlx.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

const attachmentColumns = `id, message_id, kind, path, original_name, mime, size_bytes, created_at`

// Get fetches one attachment row.
func (r *AttachmentRepo) Get(ctx context.Context, attachmentID int64) (models.Attachment, error) {
	var att models.Attachment
	err := r.db.GetContext(ctx, &att, `SELECT `+attachmentColumns+` FROM message_attachments WHERE id=$1`, attachmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attachment{}, ErrAttachmentNotFound
	}
	return att, err
}

// ByMessageIDs returns attachments grouped by message.
func (r *AttachmentRepo) ByMessageIDs(ctx context.Context, messageIDs []int64) (map[int64][]models.Attachment, error) {
	result := make(map[int64][]models.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+attachmentColumns+` FROM message_attachments WHERE message_id IN (?) ORDER BY id`, messageIDs)
	if err != nil {
		return nil, err
	}
	var atts []models.Attachment
	if err := r.db.SelectContext(ctx, &atts, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, att := range atts {
		result[att.MessageID] = append(result[att.MessageID], att)
	}
	return result, nil
}

// DeleteCascading removes the attachment row and, in the same transaction,
// counts what remains on the message. The count runs after the delete and
// with the message row locked, so two concurrent deletes on a two-attachment
// message cannot both conclude "last attachment". A message left with no
// attachments and no body is soft-deleted.
func (r *AttachmentRepo) DeleteCascading(ctx context.Context, attachmentID int64) (CascadeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return CascadeResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var att models.Attachment
	err = tx.GetContext(ctx, &att, `SELECT `+attachmentColumns+` FROM message_attachments WHERE id=$1`, attachmentID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAttachmentNotFound
		return CascadeResult{}, err
	}
	if err != nil {
		return CascadeResult{}, err
	}

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, att.MessageID).StructScan(&msg)
	if err != nil {
		return CascadeResult{}, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM message_attachments WHERE id=$1`, attachmentID); err != nil {
		return CascadeResult{}, err
	}

	var remaining int
	if err = tx.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM message_attachments WHERE message_id=$1`, att.MessageID); err != nil {
		return CascadeResult{}, err
	}

	result := CascadeResult{Attachment: att, Remaining: remaining}
	if remaining == 0 && (msg.Body == nil || *msg.Body == "") && !msg.Deleted {
		if _, err = tx.ExecContext(ctx, `UPDATE messages SET deleted=TRUE, updated_at=NOW() WHERE id=$1`, att.MessageID); err != nil {
			return CascadeResult{}, err
		}
		result.MessageDeleted = true
	}

	if err = tx.Commit(); err != nil {
		return CascadeResult{}, err
	}
	return result, nil
}
