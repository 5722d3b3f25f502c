package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKindForExtension(t *testing.T) {
	cases := map[string]AttachmentKind{
		"jpg":   AttachmentImage,
		".PNG":  AttachmentImage,
		"webp":  AttachmentImage,
		"pdf":   AttachmentDocument,
		".docx": AttachmentDocument,
		"txt":   AttachmentDocument,
		"zip":   AttachmentArchive,
		"7z":    AttachmentArchive,
	}
	for ext, want := range cases {
		kind, ok := AttachmentKindForExtension(ext)
		require.True(t, ok, "extension %q should be allowed", ext)
		assert.Equal(t, want, kind)
	}
}

func TestAttachmentKindForExtensionRejectsUnknown(t *testing.T) {
	for _, ext := range []string{"exe", "sh", "svg", "html", ""} {
		_, ok := AttachmentKindForExtension(ext)
		assert.False(t, ok, "extension %q should be rejected", ext)
	}
}

func TestAttachmentKindMessageKind(t *testing.T) {
	assert.Equal(t, KindImage, AttachmentImage.MessageKind())
	assert.Equal(t, KindFile, AttachmentDocument.MessageKind())
	assert.Equal(t, KindFile, AttachmentArchive.MessageKind())
}

func TestAllowedExtensionsSorted(t *testing.T) {
	exts := AllowedExtensions()
	require.NotEmpty(t, exts)
	assert.Contains(t, exts, "jpg")
	assert.Contains(t, exts, "zip")
	for i := 1; i < len(exts); i++ {
		assert.LessOrEqual(t, exts[i-1], exts[i])
	}
}
