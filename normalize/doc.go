// Package normalize turns raw posts into cleaned, feature-annotated items.
//
// Cleaning strips markup with a fixed sequence of regular expressions. The
// cleaned text then feeds keyword ranking, lexicon entity matching, a Flesch
// readability estimate and a lexicon sentiment score. Every input produces
// exactly one output; inputs that cannot be cleaned become fallback items.
package normalize
