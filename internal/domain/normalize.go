package domain

import (
	"regexp"
	"strings"
)

var (
	markupTagPattern  = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	blankLinePattern  = regexp.MustCompile(`\n\s*\n`)
)

// NormalizeText cleans extracted document text: markup-tag-like substrings
// are removed, runs of whitespace collapse to a single space, consecutive
// blank lines collapse to one, and the result is trimmed. Empty or
// whitespace-only input yields an empty string; downstream stages treat
// empty text as nothing to chunk.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	text = markupTagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n")

	return strings.TrimSpace(text)
}
