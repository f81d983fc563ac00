package pipeline

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Result messages.
const (
	MessageOK  = "OK"
	MessageSBC = "SBC document processed (SBC path)."
)

var printer = message.NewPrinter(language.English)

// TokenOverflowMessage reports a document over the token limit.
func TokenOverflowMessage(limit int) string {
	return printer.Sprintf("Document exceeds %d tokens. Pipeline stopped processing. Please try again.", limit)
}

// PlanNotFoundMessage reports a Search query that matched no plan.
func PlanNotFoundMessage(name string) string {
	return `Plan "` + name + `" not found.`
}
