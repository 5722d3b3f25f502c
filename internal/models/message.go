package models

import "time"

// MessageKind discriminates the message union. Rendering switches on it.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
	KindLink  MessageKind = "link"
)

// ValidKind reports whether k is one of the known message kinds.
func ValidKind(k MessageKind) bool {
	switch k {
	case KindText, KindImage, KindFile, KindLink:
		return true
	}
	return false
}

// Message is one entry of a conversation's ordered log. Deletion is an
// explicit flag rather than the row-level soft-delete used elsewhere in the
// system: the row must stay addressable for reply chains, only its content is
// nulled on render. Ordering key is (CreatedAt, ID); ID breaks ties and
// doubles as the polling cursor.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversation_id"`
	AuthorID       int64       `db:"author_id" json:"author_id"`
	ParentID       *int64      `db:"parent_id" json:"parent_id,omitempty"`
	Kind           MessageKind `db:"kind" json:"kind"`
	Body           *string     `db:"body" json:"body"`
	Edited         bool        `db:"edited" json:"edited"`
	Deleted        bool        `db:"deleted" json:"deleted"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// SeenRecord marks that a user has observed a message. Existence is the whole
// payload; records are never mutated and authors never get one for their own
// messages.
type SeenRecord struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SeenUser is a seen record joined with the observer's name.
type SeenUser struct {
	UserID int64  `db:"user_id" json:"id"`
	Name   string `db:"name" json:"name"`
}

// SeenByEveryone reports whether every active member other than the author
// has a seen record for the message. It is computed on demand so membership
// changes never leave a stale stored flag behind.
func SeenByEveryone(authorID int64, activeMemberIDs []int64, seenUserIDs []int64) bool {
	seen := make(map[int64]struct{}, len(seenUserIDs))
	for _, id := range seenUserIDs {
		seen[id] = struct{}{}
	}
	others := 0
	for _, id := range activeMemberIDs {
		if id == authorID {
			continue
		}
		others++
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return others > 0
}
