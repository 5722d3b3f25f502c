// Package sanitize strips untrusted markup from message bodies before
// storage. The safelist is fixed: line breaks, bold/italic/underline/strike
// and plain links. Event-handler attributes and script URIs never survive.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"messaging-service/internal/models"
)

const previewRunes = 50

var (
	body   = newBodyPolicy()
	strict = bluemonday.StrictPolicy()
)

func newBodyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "b", "strong", "i", "em", "u", "s", "strike", "del")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(true)
	return p
}

// Body returns content safe to store and re-render.
func Body(content string) string {
	return strings.TrimSpace(body.Sanitize(content))
}

// Preview renders the short plain-text form used by conversation lists and
// search results.
func Preview(kind models.MessageKind, content *string, deleted bool) string {
	if deleted {
		return "message deleted"
	}
	switch kind {
	case models.KindImage:
		return "\U0001F4F7 image"
	case models.KindFile:
		return "\U0001F4CE file"
	case models.KindLink:
		return "\U0001F517 link"
	}
	if content == nil {
		return ""
	}
	text := strict.Sanitize(*content)
	if utf8.RuneCountInString(text) > previewRunes {
		runes := []rune(text)
		return string(runes[:previewRunes]) + "..."
	}
	return text
}
