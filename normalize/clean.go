package normalize

import (
	"html"
	"regexp"
	"strings"
)

// substitution is one step of the markup-stripping pass.
type substitution struct {
	pattern *regexp.Regexp
	replace string
}

// markupPasses run in order. Links go before bare URLs so the link text survives.
var markupPasses = []substitution{
	// markdown links
	{regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`), "$1"},
	// urls
	{regexp.MustCompile(`(?i)\bhttps?://\S+`), " "},
	{regexp.MustCompile(`(?i)\bwww\.\S+`), " "},
	// user and subreddit mentions
	{regexp.MustCompile(`(?i)(^|[^\w/])/?u/[\w-]+`), "$1 "},
	{regexp.MustCompile(`(?i)(^|[^\w/])/?r/[\w-]+`), "$1 "},
	// spoilers, then quote markers
	{regexp.MustCompile(`>!|!<`), " "},
	{regexp.MustCompile(`(?m)^[ \t]*>+[ \t]?`), ""},
	// bold, italic, strikethrough
	{regexp.MustCompile(`\*{1,3}([^*\n]+?)\*{1,3}`), "$1"},
	{regexp.MustCompile(`(^|\W)_{1,3}([^_\n]+?)_{1,3}(\W|$)`), "$1$2$3"},
	{regexp.MustCompile(`~~([^~\n]+?)~~`), "$1"},
	// code and headings
	{regexp.MustCompile("`{1,3}"), " "},
	{regexp.MustCompile(`(?m)^#{1,6}[ \t]+`), ""},
}

var (
	// Everything except letters, digits, whitespace and sentence punctuation.
	disallowedPunct = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?'\-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// CleanText strips source markup from text and collapses whitespace.
func CleanText(text string) string {
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "’", "'")
	for _, pass := range markupPasses {
		text = pass.pattern.ReplaceAllString(text, pass.replace)
	}
	text = disallowedPunct.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
