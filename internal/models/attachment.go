package models

import (
	"sort"
	"strings"
	"time"
)

// AttachmentKind categorizes an attachment by its extension.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentArchive  AttachmentKind = "archive"
)

// Attachment is binary content tied to exactly one message. Immutable once
// created; its lifecycle is independent of the message except that deleting
// the last attachment of a body-less message soft-deletes the message.
type Attachment struct {
	ID           int64          `db:"id" json:"id"`
	MessageID    int64          `db:"message_id" json:"message_id"`
	Kind         AttachmentKind `db:"kind" json:"kind"`
	Path         string         `db:"path" json:"-"`
	OriginalName string         `db:"original_name" json:"original_name"`
	Mime         string         `db:"mime" json:"mime,omitempty"`
	SizeBytes    int64          `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// DefaultMaxAttachmentBytes is the upload ceiling (10 MB) unless overridden
// by configuration.
const DefaultMaxAttachmentBytes int64 = 10 << 20

// Closed allow-list of uploadable extensions keyed by category. Checked at
// upload validation and again at storage time.
var allowedExtensions = map[string]AttachmentKind{
	"jpg": AttachmentImage, "jpeg": AttachmentImage, "png": AttachmentImage,
	"gif": AttachmentImage, "webp": AttachmentImage,
	"pdf": AttachmentDocument, "doc": AttachmentDocument, "docx": AttachmentDocument,
	"xls": AttachmentDocument, "xlsx": AttachmentDocument, "ppt": AttachmentDocument,
	"pptx": AttachmentDocument, "txt": AttachmentDocument,
	"zip": AttachmentArchive, "rar": AttachmentArchive, "7z": AttachmentArchive,
}

// AttachmentKindForExtension maps a file extension (with or without a leading
// dot, any case) to its category. ok is false for extensions outside the
// allow-list.
func AttachmentKindForExtension(ext string) (AttachmentKind, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	kind, ok := allowedExtensions[ext]
	return kind, ok
}

// AllowedExtensions returns the sorted allow-list, used in error payloads.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// MessageKind returns the message kind a fresh attachment message gets:
// images render inline, everything else is a plain file message.
func (k AttachmentKind) MessageKind() MessageKind {
	if k == AttachmentImage {
		return KindImage
	}
	return KindFile
}
