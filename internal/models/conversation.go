package models

import (
	"strings"
	"time"
)

// Conversation groups two or more members around a message log. A nil Name
// means the display name is derived from the roster at render time.
type Conversation struct {
	ID        int64      `db:"id" json:"id"`
	Name      *string    `db:"name" json:"name,omitempty"`
	IsGroup   bool       `db:"is_group" json:"is_group"`
	CreatedBy int64      `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Membership is the per-user roster row of a conversation.
type Membership struct {
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	IsAdmin        bool       `db:"is_admin" json:"is_admin"`
	IsArchived     bool       `db:"is_archived" json:"is_archived"`
	LastSeenAt     *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
}

// Member joins a membership row with the user's directory entry.
type Member struct {
	Membership
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// DeriveDisplayName resolves the name shown for a conversation. An explicit
// name always wins. Otherwise the first two other members name it, with a
// suffix when more exist, and the creator's own name is the degenerate
// fallback for a roster with nobody else in it.
func DeriveDisplayName(name *string, otherNames []string, creatorName string) string {
	if name != nil && *name != "" {
		return *name
	}
	if len(otherNames) == 0 {
		return creatorName
	}
	if len(otherNames) <= 2 {
		return strings.Join(otherNames, ", ")
	}
	return strings.Join(otherNames[:2], ", ") + " and more…"
}
