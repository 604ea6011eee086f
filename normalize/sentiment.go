package normalize

import (
	"math"

	"github.com/poiesic/pulse/core"
)

const (
	// Label cutoffs on the normalized score.
	positiveCutoff = 0.05
	negativeCutoff = -0.05

	// normalizationAlpha approximates the expected maximum of the raw sum.
	normalizationAlpha = 15.0

	// negationWindow is how many preceding tokens a negator reaches.
	negationWindow = 3
)

// ScoreSentiment scores cleaned text with the lexicon. The raw sum of word
// weights is squashed into (-1, 1) with x / sqrt(x^2 + alpha).
func (n *Normalizer) ScoreSentiment(cleaned string) core.Sentiment {
	tokens := words(cleaned)
	var sum float64
	for i, w := range tokens {
		weight, ok := n.lexicon.Sentiment[w]
		if !ok {
			continue
		}
		if i > 0 {
			if boost, ok := n.lexicon.Intensifiers[tokens[i-1]]; ok {
				weight *= boost
			}
		}
		for j := max(0, i-negationWindow); j < i; j++ {
			if n.lexicon.isNegator(tokens[j]) {
				weight *= -0.74
				break
			}
		}
		sum += weight
	}

	score := 0.0
	if sum != 0 {
		score = sum / math.Sqrt(sum*sum+normalizationAlpha)
	}
	return core.Sentiment{Score: score, Label: LabelFor(score)}
}

// LabelFor buckets a sentiment score.
func LabelFor(score float64) core.SentimentLabel {
	switch {
	case score > positiveCutoff:
		return core.SentimentPositive
	case score < negativeCutoff:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}
