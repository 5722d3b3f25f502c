package service

import (
	"time"

	"messaging-service/internal/models"
)

// MemberView is one roster entry in a conversation payload.
type MemberView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// LastMessageView is the compact preview shown in conversation lists.
type LastMessageView struct {
	ID         int64              `json:"id"`
	AuthorID   int64              `json:"author_id"`
	AuthorName string             `json:"author_name"`
	Kind       models.MessageKind `json:"kind"`
	Preview    string             `json:"preview"`
	CreatedAt  time.Time          `json:"created_at"`
}

// ConversationView is the conversation as rendered for one viewer. Name is
// always resolved here, never taken raw from storage.
type ConversationView struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	IsGroup     bool             `json:"is_group"`
	CreatedBy   int64            `json:"created_by"`
	IsAdmin     bool             `json:"is_admin"`
	IsArchived  bool             `json:"is_archived"`
	UnreadCount int              `json:"unread_count"`
	HasNew      bool             `json:"has_new"`
	Members     []MemberView     `json:"members"`
	LastMessage *LastMessageView `json:"last_message,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ReplyView is the parent block embedded in a reply's payload.
type ReplyView struct {
	ID         int64  `json:"id"`
	AuthorID   int64  `json:"author_id"`
	AuthorName string `json:"author_name"`
	Preview    string `json:"preview"`
	Deleted    bool   `json:"deleted"`
}

// AttachmentView adds the resolved public URL to the attachment row.
type AttachmentView struct {
	ID           int64                 `json:"id"`
	Kind         models.AttachmentKind `json:"kind"`
	OriginalName string                `json:"original_name"`
	Mime         string                `json:"mime,omitempty"`
	SizeBytes    int64                 `json:"size_bytes"`
	URL          string                `json:"url"`
	CreatedAt    time.Time             `json:"created_at"`
}

// MessageView is the full message payload. Body is nulled for deleted
// messages; the row itself stays visible so reply chains keep rendering.
type MessageView struct {
	ID             int64              `json:"id"`
	ConversationID int64              `json:"conversation_id"`
	Author         models.UserRef     `json:"author"`
	Parent         *ReplyView         `json:"parent,omitempty"`
	Kind           models.MessageKind `json:"kind"`
	Body           *string            `json:"body"`
	Edited         bool               `json:"edited"`
	Deleted        bool               `json:"deleted"`
	IsOwn          bool               `json:"is_own"`
	SeenBy         []models.SeenUser  `json:"seen_by"`
	SeenCount      int                `json:"seen_count"`
	SeenByEveryone bool               `json:"seen_by_everyone"`
	Attachments    []AttachmentView   `json:"attachments"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// PageResult is a backward page of messages, oldest-first.
type PageResult struct {
	Messages []MessageView `json:"messages"`
	HasMore  bool          `json:"has_more"`
}

// PollResult is the forward-poll payload, oldest-first.
type PollResult struct {
	Messages []MessageView `json:"messages"`
	NewCount int           `json:"new_count"`
}

// LeaveResult reports what leaving did beyond the removal itself.
type LeaveResult struct {
	GroupDissolved bool  `json:"group_dissolved"`
	PromotedUserID int64 `json:"promoted_user_id,omitempty"`
}

// StatusResult is the lightweight heartbeat payload.
type StatusResult struct {
	UnreadTotal int       `json:"unread_total"`
	ServerTime  time.Time `json:"server_time"`
}

// DeleteAttachmentResult tells the caller whether the cascade also removed
// the owning message.
type DeleteAttachmentResult struct {
	AttachmentID   int64 `json:"attachment_id"`
	Remaining      int   `json:"remaining_attachments"`
	MessageDeleted bool  `json:"message_deleted"`
}
