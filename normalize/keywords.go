package normalize

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/poiesic/pulse/core"
)

// MaxKeywords is how many ranked keywords a processed item keeps.
const MaxKeywords = 15

// MaxNumbers caps the numeric entities kept per item.
const MaxNumbers = 10

var numberToken = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// words splits text into lowercase tokens of letters, digits and apostrophes.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// ExtractKeywords ranks keyword candidates by frequency. Tokens must be longer
// than two characters, purely alphabetic and not stopwords. Ties keep the order
// in which the words first appeared.
func (n *Normalizer) ExtractKeywords(cleaned string) []core.Keyword {
	counts := make(map[string]int)
	var order []string
	for _, w := range n.lexicon.ContentWords(cleaned) {
		if !isAlphabetic(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	keywords := make([]core.Keyword, len(order))
	for i, w := range order {
		keywords[i] = core.Keyword{Word: w, Count: counts[w]}
	}
	slices.SortStableFunc(keywords, func(a, b core.Keyword) int {
		return b.Count - a.Count
	})

	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return keywords
}

// ExtractEntities matches tokens against the product, feature and emotion
// lexicons and collects up to MaxNumbers numeric tokens.
func (n *Normalizer) ExtractEntities(cleaned string) core.Entities {
	var ents core.Entities
	seen := make(map[string]struct{})
	add := func(bucket *[]string, kind, w string) {
		key := kind + ":" + w
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		*bucket = append(*bucket, w)
	}

	for _, w := range words(cleaned) {
		if _, ok := n.lexicon.Products[w]; ok {
			add(&ents.Products, "p", w)
		}
		if _, ok := n.lexicon.Features[w]; ok {
			add(&ents.Features, "f", w)
		}
		if _, ok := n.lexicon.Emotions[w]; ok {
			add(&ents.Emotions, "e", w)
		}
	}

	ents.Numbers = numberToken.FindAllString(cleaned, MaxNumbers)
	return ents
}
