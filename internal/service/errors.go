package service

import "errors"

// Business-rule violations surfaced to the HTTP layer. Repository sentinels
// pass through untouched; these cover the policy checks that live here.
var (
	// ErrForbidden: the caller lacks the membership or role for the action.
	ErrForbidden = errors.New("operation not allowed for this user")
	// ErrInsufficientMembers: a conversation needs at least 2 distinct members.
	ErrInsufficientMembers = errors.New("a conversation requires at least 2 members")
	// ErrCannotRemoveCreator: the creator can leave but never be removed.
	ErrCannotRemoveCreator = errors.New("the conversation creator cannot be removed")
	// ErrUnsupportedType: the file extension is outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported attachment type")
	// ErrFileTooLarge: the upload exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("attachment exceeds the maximum size")
	// ErrEmptyBody: a text message ended up empty after sanitization.
	ErrEmptyBody = errors.New("message body is required")
	// ErrInvalidKind: unknown message kind.
	ErrInvalidKind = errors.New("invalid message kind")
	// ErrQueryTooShort: search requires at least 2 characters.
	ErrQueryTooShort = errors.New("search query requires at least 2 characters")
)
