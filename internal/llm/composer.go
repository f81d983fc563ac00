package llm

import (
	"strings"

	"planextract/internal/port"
)

// DocumentPlaceholder is the template slot replaced by the cached document part.
const DocumentPlaceholder = "<Document></Document>"

// CacheEphemeral is the cache marker type understood by chat providers.
const CacheEphemeral = "ephemeral"

// Composition is the input of Compose.
type Composition struct {
	Template    string
	Document    string
	EnableCache bool
	SystemText  string
	Extras      []string
}

// CanonicalDocument normalizes line endings and trims the document text.
func CanonicalDocument(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
}

// WrapDocument returns the document block exactly as it is sent.
func WrapDocument(canonical string) string {
	return "<Document>\n" + canonical + "\n</Document>"
}

// Compose builds the system and user messages for one chat call. The document
// always travels as a single part with identical bytes so the provider can
// reuse its prompt cache across stages. Trimmed template text goes before it
// and trimmed extras after it, each only when non-empty.
func Compose(c Composition) []port.Message {
	docPart := port.ContentPart{
		Type: "text",
		Text: WrapDocument(CanonicalDocument(c.Document)),
	}
	if c.EnableCache {
		docPart.CacheControl = &port.CacheControl{Type: CacheEphemeral}
	}

	var user []port.ContentPart
	if tmpl := strings.TrimSpace(strings.ReplaceAll(c.Template, DocumentPlaceholder, "")); tmpl != "" {
		user = append(user, port.ContentPart{Type: "text", Text: tmpl})
	}
	user = append(user, docPart)
	for _, extra := range c.Extras {
		if extra = strings.TrimSpace(extra); extra != "" {
			user = append(user, port.ContentPart{Type: "text", Text: extra})
		}
	}

	return []port.Message{
		{Role: "system", Content: []port.ContentPart{{Type: "text", Text: strings.TrimSpace(c.SystemText)}}},
		{Role: "user", Content: user},
	}
}
