package embed

import (
	"strings"
	"unicode"
)

// Truncate shortens text to at most maxChars runes. The cut moves back to the
// last whitespace within the final fifth of the budget so words are not split;
// only text with no whitespace that close to the limit is cut mid-word.
func Truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}

	if unicode.IsSpace(runes[maxChars]) {
		return strings.TrimRightFunc(string(runes[:maxChars]), unicode.IsSpace)
	}

	floor := maxChars * 4 / 5
	for i := maxChars - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return strings.TrimRightFunc(string(runes[:i]), unicode.IsSpace)
		}
	}
	return string(runes[:maxChars])
}
