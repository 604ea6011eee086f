package normalize

import (
	"math"
	"strings"

	"github.com/poiesic/pulse/core"
)

// Readability computes the Flesch reading ease of text, clamped to [0, 100].
// Text without words scores 0.
func Readability(text string) float64 {
	ws := words(text)
	if len(ws) == 0 {
		return 0
	}

	sentences := countSentences(text)
	syllables := 0
	for _, w := range ws {
		syllables += countSyllables(w)
	}

	wordCount := float64(len(ws))
	score := 206.835 - 1.015*(wordCount/float64(sentences)) - 84.6*(float64(syllables)/wordCount)
	return math.Max(0, math.Min(100, score))
}

func countSentences(text string) int {
	n := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// countSyllables estimates syllables by counting vowel groups, dropping a
// trailing silent e. Every word has at least one.
func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// Features derives the structural signals of cleaned text.
func Features(cleaned string) core.TextFeatures {
	return core.TextFeatures{
		HasQuestion:    strings.Contains(cleaned, "?"),
		HasExclamation: strings.Contains(cleaned, "!"),
		Readability:    Readability(cleaned),
	}
}
