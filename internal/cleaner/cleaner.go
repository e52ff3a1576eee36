package cleaner

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Clean normalizes raw extracted text: runs of whitespace (spaces, tabs,
// newlines) collapse to a single space and the result is trimmed. Cleaning a
// whitespace-only input yields the empty string.
func Clean(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
