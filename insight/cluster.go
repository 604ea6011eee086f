package insight

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/poiesic/pulse/core"
)

const (
	// MaxKeywordDistance is the normalized edit distance below which two
	// keywords belong to the same theme.
	MaxKeywordDistance = 0.3

	// confidenceBase is the post count at which confidence saturates.
	confidenceBase = 15.0
	maxConfidence  = 0.9
	// Themes spanning several keywords get a boost, capped separately.
	multiKeywordBoost = 1.1
	maxBoosted        = 0.95
)

// ClusterOptions tunes ClusterThemes.
type ClusterOptions struct {
	// Exclude lists keywords ignored entirely, typically the product name.
	// Matching is case-insensitive.
	Exclude []string
}

type keywordGroup struct {
	keyword string
	ids     []core.ID
	seen    map[core.ID]struct{}
}

func (g *keywordGroup) add(id core.ID) {
	if _, ok := g.seen[id]; ok {
		return
	}
	g.seen[id] = struct{}{}
	g.ids = append(g.ids, id)
}

// Similar reports whether two normalized keywords belong in one theme.
func Similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return float64(levenshtein.ComputeDistance(a, b))/float64(longest) < MaxKeywordDistance
}

// ClusterThemes groups posts by similar keywords. Themes with fewer than
// minClusterSize distinct posts are dropped. The result is deterministic for
// a given input and ordered by descending post count, then seed keyword.
func ClusterThemes(posts []*core.PostRecord, minClusterSize int, opts ClusterOptions) []core.Theme {
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, w := range opts.Exclude {
		excluded[normalizeKeyword(w)] = struct{}{}
	}

	byID := make(map[core.ID]*core.PostRecord, len(posts))
	groups := make(map[string]*keywordGroup)
	for _, p := range posts {
		if p == nil {
			continue
		}
		byID[p.Id] = p
		for _, k := range p.Keywords {
			word := normalizeKeyword(k.Word)
			if word == "" {
				continue
			}
			if _, skip := excluded[word]; skip {
				continue
			}
			g, ok := groups[word]
			if !ok {
				g = &keywordGroup{keyword: word, seen: make(map[core.ID]struct{})}
				groups[word] = g
			}
			g.add(p.Id)
		}
	}

	ordered := make([]*keywordGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	slices.SortFunc(ordered, func(a, b *keywordGroup) int {
		if c := cmp.Compare(len(b.ids), len(a.ids)); c != 0 {
			return c
		}
		return strings.Compare(a.keyword, b.keyword)
	})

	processed := make(map[string]struct{}, len(ordered))
	var themes []core.Theme
	for i, seed := range ordered {
		if _, done := processed[seed.keyword]; done {
			continue
		}
		processed[seed.keyword] = struct{}{}

		merged := &keywordGroup{keyword: seed.keyword, seen: make(map[core.ID]struct{})}
		keywords := []string{seed.keyword}
		for _, id := range seed.ids {
			merged.add(id)
		}
		for _, other := range ordered[i+1:] {
			if _, done := processed[other.keyword]; done {
				continue
			}
			if !Similar(seed.keyword, other.keyword) {
				continue
			}
			processed[other.keyword] = struct{}{}
			keywords = append(keywords, other.keyword)
			for _, id := range other.ids {
				merged.add(id)
			}
		}

		if len(merged.ids) < minClusterSize {
			continue
		}
		themes = append(themes, buildTheme(keywords, merged.ids, byID))
	}

	slices.SortFunc(themes, func(a, b core.Theme) int {
		if c := cmp.Compare(b.PostCount, a.PostCount); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword(), b.Keyword())
	})
	return themes
}

func buildTheme(keywords []string, ids []core.ID, byID map[core.ID]*core.PostRecord) core.Theme {
	var sum float64
	var pos, neg, neu int
	for _, id := range ids {
		s := byID[id].Sentiment
		sum += s.Score
		switch s.Label {
		case core.SentimentPositive:
			pos++
		case core.SentimentNegative:
			neg++
		default:
			neu++
		}
	}
	n := len(ids)
	pct := func(k int) float64 { return float64(k) / float64(n) * 100 }

	return core.Theme{
		Keywords:         keywords,
		PostIDs:          ids,
		PostCount:        n,
		AverageSentiment: sum / float64(n),
		Distribution: core.Distribution{
			Positive: pct(pos),
			Negative: pct(neg),
			Neutral:  pct(neu),
		},
		Confidence: Confidence(n, len(keywords)),
	}
}

// Confidence scores a theme by its size, with a boost for themes spanning
// more than one keyword.
func Confidence(postCount, keywordCount int) float64 {
	c := math.Min(maxConfidence, float64(postCount)/confidenceBase)
	if keywordCount > 1 {
		c = math.Min(maxBoosted, c*multiKeywordBoost)
	}
	return c
}

func normalizeKeyword(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
