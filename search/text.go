package search

import "github.com/poiesic/pulse/normalize"

// verbatim reports whether every content word of query appears in text.
// A query with no content words never matches verbatim.
func verbatim(lexicon *normalize.Lexicon, text, query string) bool {
	want := lexicon.ContentWords(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, w := range lexicon.ContentWords(text) {
		have[w] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
