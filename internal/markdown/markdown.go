// Package markdown renders Bugzilla text for markdown-based destinations.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	preOpen  = "<pre>"
	preClose = "</pre>"
)

// specialChars are characters the destination renderer gives meaning to.
const specialChars = "#>_-~|*+@"

// Sanitize wraps text in a preformatted block when it contains anything the
// destination renderer would treat as markup: one of specialChars, or more
// than one "=". The whole text is wrapped or none of it is. Text that is
// already a single preformatted block is returned unchanged.
func Sanitize(text string) string {
	if IsPreformatted(text) {
		return text
	}
	if strings.ContainsAny(text, specialChars) || strings.Count(text, "=") > 1 {
		return preOpen + text + preClose
	}
	return text
}

// IsPreformatted reports whether text is exactly one preformatted block.
func IsPreformatted(text string) bool {
	if len(text) < len(preOpen)+len(preClose) ||
		!strings.HasPrefix(text, preOpen) || !strings.HasSuffix(text, preClose) {
		return false
	}
	inner := text[len(preOpen) : len(text)-len(preClose)]
	return !strings.Contains(inner, preOpen) && !strings.Contains(inner, preClose)
}

// TrimPreformatted strips a trailing preformatted-block close marker.
func TrimPreformatted(text string) string {
	return strings.TrimSuffix(text, preClose)
}

var newlineRuns = regexp.MustCompile(`\n+`)

// Paragraphs collapses every run of newlines into a single blank line.
func Paragraphs(text string) string {
	return newlineRuns.ReplaceAllString(text, "\n\n")
}

// TableRow renders one row of a two-column markdown table.
func TableRow(key, value string) string {
	return fmt.Sprintf("| %s | %s |\n", key, value)
}

// TableHeader renders the empty header and separator rows of a two-column
// key/value table.
func TableHeader() string {
	return TableRow("", "") + TableRow("---", "---")
}

// Link renders a markdown link.
func Link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", text, url)
}

// FormatTime renders t with a Go layout, returning an empty string for the
// zero time.
func FormatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
