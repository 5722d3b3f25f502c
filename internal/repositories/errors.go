package repositories

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrAttachmentNotFound   = errors.New("attachment not found")
	ErrUserNotFound         = errors.New("user not found")

	// ErrNotMember: the user has no active membership in the conversation.
	ErrNotMember = errors.New("user is not a member of the conversation")
	// ErrAlreadyMember: an active membership already exists.
	ErrAlreadyMember = errors.New("user is already a member of the conversation")
	// ErrMinimumMembers: the removal would drop the roster below two members.
	ErrMinimumMembers = errors.New("conversation requires at least 2 members")
	// ErrInvalidParent: the reply target is missing or in another conversation.
	ErrInvalidParent = errors.New("parent message does not belong to the conversation")
)
