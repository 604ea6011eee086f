package insight

import (
	"testing"

	"github.com/poiesic/pulse/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id string, score float64, keywords ...string) *core.PostRecord {
	kws := make([]core.Keyword, len(keywords))
	for i, k := range keywords {
		kws[i] = core.Keyword{Word: k, Count: 1}
	}
	label := core.SentimentNeutral
	if score > 0.05 {
		label = core.SentimentPositive
	} else if score < -0.05 {
		label = core.SentimentNegative
	}
	return &core.PostRecord{
		Id:        core.PostID(core.PlatformReddit, id),
		Platform:  core.PlatformReddit,
		ProductID: "whoop",
		Post:      core.RawPost{ExternalID: id},
		Keywords:  kws,
		Sentiment: core.Sentiment{Score: score, Label: label},
	}
}

func TestClusterThemes_SingleKeywordTheme(t *testing.T) {
	posts := []*core.PostRecord{
		post("1", 0.6, "whoop", "battery", "amazing"),
		post("2", -0.5, "whoop", "battery", "terrible"),
		post("3", 0.5, "whoop", "battery", "great"),
	}

	themes := ClusterThemes(posts, 3, ClusterOptions{Exclude: []string{"WHOOP"}})
	require.Len(t, themes, 1)

	theme := themes[0]
	assert.Equal(t, []string{"battery"}, theme.Keywords)
	assert.Equal(t, 3, theme.PostCount)
	assert.InDelta(t, 0.2, theme.AverageSentiment, 1e-9)
	assert.InDelta(t, 0.2, theme.Confidence, 1e-9)
	assert.InDelta(t, 200.0/3, theme.Distribution.Positive, 1e-9)
	assert.InDelta(t, 100.0/3, theme.Distribution.Negative, 1e-9)
	assert.Zero(t, theme.Distribution.Neutral)
}

func TestClusterThemes_TiesAreLexicographic(t *testing.T) {
	posts := []*core.PostRecord{
		post("1", 0, "whoop", "battery"),
		post("2", 0, "whoop", "battery"),
		post("3", 0, "whoop", "battery"),
	}

	themes := ClusterThemes(posts, 3, ClusterOptions{})
	require.Len(t, themes, 2)
	assert.Equal(t, "battery", themes[0].Keyword())
	assert.Equal(t, "whoop", themes[1].Keyword())
}

func TestClusterThemes_MergesSimilarKeywords(t *testing.T) {
	posts := []*core.PostRecord{
		post("1", -0.4, "battery", "sleep"),
		post("2", -0.4, "battery", "batt"),
		post("3", -0.4, "battery"),
		post("4", -0.4, "battery", "sleep"),
		post("5", 0.4, "batt", "sleeping"),
		post("6", 0.4, "sleep", "trackng"),
		post("7", 0.4, "tracking"),
	}

	themes := ClusterThemes(posts, 2, ClusterOptions{})
	require.Len(t, themes, 3)

	assert.Equal(t, []string{"battery", "batt"}, themes[0].Keywords)
	assert.Equal(t, 5, themes[0].PostCount, "post 2 carries both keywords and counts once")
	assert.InDelta(t, Confidence(5, 2), themes[0].Confidence, 1e-9)

	assert.Equal(t, []string{"sleep", "sleeping"}, themes[1].Keywords)
	assert.Equal(t, 4, themes[1].PostCount)

	assert.Equal(t, []string{"tracking", "trackng"}, themes[2].Keywords)
	assert.Equal(t, 2, themes[2].PostCount)
}

func TestClusterThemes_DropsSmallThemes(t *testing.T) {
	posts := []*core.PostRecord{
		post("1", 0, "strap"),
		post("2", 0, "strap"),
		post("3", 0, "app"),
	}
	themes := ClusterThemes(posts, 3, ClusterOptions{})
	assert.Empty(t, themes)

	themes = ClusterThemes(posts, 2, ClusterOptions{})
	require.Len(t, themes, 1)
	assert.Equal(t, "strap", themes[0].Keyword())
}

func TestClusterThemes_Deterministic(t *testing.T) {
	posts := []*core.PostRecord{
		post("1", 0, "charge", "charger", "sync"),
		post("2", 0, "charging", "sync"),
		post("3", 0, "charger", "synced"),
		post("4", 0, "charge", "sync"),
	}
	first := ClusterThemes(posts, 1, ClusterOptions{})
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ClusterThemes(posts, 1, ClusterOptions{}))
	}
}

func TestClusterThemes_Empty(t *testing.T) {
	assert.Empty(t, ClusterThemes(nil, 3, ClusterOptions{}))
	assert.Empty(t, ClusterThemes([]*core.PostRecord{post("1", 0)}, 1, ClusterOptions{}))
}

func TestSimilar(t *testing.T) {
	assert.True(t, Similar("battery", "batt"))
	assert.True(t, Similar("strap", "straps"))
	assert.True(t, Similar("tracking", "trackng"))
	assert.False(t, Similar("battery", "batteries"))
	assert.False(t, Similar("sleep", "strap"))
	assert.False(t, Similar("", "strap"))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, Confidence(3, 1), 1e-9)
	assert.InDelta(t, 0.22, Confidence(3, 2), 1e-9)
	assert.InDelta(t, 0.9, Confidence(15, 1), 1e-9)
	assert.InDelta(t, 0.9, Confidence(40, 1), 1e-9)
	assert.InDelta(t, 0.95, Confidence(40, 3), 1e-9)
}
