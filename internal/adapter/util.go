package adapter

import (
	"html"
	"regexp"
	"strings"

	"github.com/amishk599/jobletter/internal/model"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	htmlScriptRegex = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
)

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), drops script and style blocks, strips all
// tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	unescaped = htmlScriptRegex.ReplaceAllString(unescaped, " ")
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// description normalizes a raw description into capped plain text.
func description(raw string) string {
	return model.TruncateRunes(extractText(raw), model.MaxDescriptionRunes)
}
