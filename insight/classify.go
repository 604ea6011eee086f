package insight

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/pulse/core"
)

const (
	complaintSentiment = -0.2
	complaintMinPosts  = 5
	praiseSentiment    = 0.2
	praiseMinPosts     = 3
	trendMinPosts      = 10
)

// Classify assigns an insight type to a theme.
func Classify(theme core.Theme) core.InsightType {
	switch {
	case theme.AverageSentiment < complaintSentiment && theme.PostCount >= complaintMinPosts:
		return core.InsightComplaint
	case theme.AverageSentiment > praiseSentiment && theme.PostCount >= praiseMinPosts:
		return core.InsightPraise
	case theme.PostCount >= trendMinPosts:
		return core.InsightTrend
	default:
		return core.InsightFeatureRequest
	}
}

// Describe returns the title and description of a theme classified as kind.
func Describe(theme core.Theme, kind core.InsightType) (title, description string) {
	keyword := theme.Keyword()
	d := theme.Distribution
	n := theme.PostCount

	switch kind {
	case core.InsightComplaint:
		title = fmt.Sprintf("Users report problems with %s", keyword)
		description = fmt.Sprintf("%d posts mention %s and %.0f%% of them are negative.", n, keyword, d.Negative)
	case core.InsightPraise:
		title = fmt.Sprintf("Users praise %s", keyword)
		description = fmt.Sprintf("%d posts mention %s and %.0f%% of them are positive.", n, keyword, d.Positive)
	case core.InsightTrend:
		title = fmt.Sprintf("%s is a trending topic", capitalize(keyword))
		description = fmt.Sprintf("%s came up in %d posts (%.0f%% positive, %.0f%% negative, %.0f%% neutral).",
			capitalize(keyword), n, d.Positive, d.Negative, d.Neutral)
	default:
		title = fmt.Sprintf("Possible feature request around %s", keyword)
		description = fmt.Sprintf("%d posts discuss %s (%.0f%% positive, %.0f%% negative).", n, keyword, d.Positive, d.Negative)
	}

	if len(theme.Keywords) > 1 {
		description += fmt.Sprintf(" Related terms: %s.", strings.Join(theme.Keywords[1:], ", "))
	}
	return title, description
}

// NewInsight classifies theme and builds the insight row for it.
func NewInsight(theme core.Theme, productID, platform, timeframe string, at time.Time) *core.Insight {
	kind := Classify(theme)
	title, description := Describe(theme, kind)
	return &core.Insight{
		ID:               core.InsightID(productID, platform, timeframe, theme.Keyword()),
		ProductID:        productID,
		Platform:         platform,
		Timeframe:        timeframe,
		Type:             kind,
		Keyword:          theme.Keyword(),
		Keywords:         theme.Keywords,
		Title:            title,
		Description:      description,
		ContentCount:     theme.PostCount,
		Confidence:       theme.Confidence,
		AverageSentiment: theme.AverageSentiment,
		Distribution:     theme.Distribution,
		GeneratedAt:      at,
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
