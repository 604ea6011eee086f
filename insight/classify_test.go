package insight

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/poiesic/pulse/core"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		avg  float64
		n    int
		want core.InsightType
	}{
		{"negative and large", -0.3, 5, core.InsightComplaint},
		{"negative but small", -0.3, 4, core.InsightFeatureRequest},
		{"negative and very large", -0.5, 12, core.InsightComplaint},
		{"positive", 0.3, 3, core.InsightPraise},
		{"positive but tiny", 0.3, 2, core.InsightFeatureRequest},
		{"neutral and large", 0.0, 10, core.InsightTrend},
		{"boundary sentiment is not a complaint", -0.2, 10, core.InsightTrend},
		{"neutral and small", 0.1, 4, core.InsightFeatureRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(core.Theme{AverageSentiment: tt.avg, PostCount: tt.n}))
		})
	}
}

func TestNewInsight(t *testing.T) {
	theme := core.Theme{
		Keywords:         []string{"battery", "batt"},
		PostCount:        6,
		AverageSentiment: -0.4,
		Distribution:     core.Distribution{Positive: 0, Negative: 83.3, Neutral: 16.7},
		Confidence:       0.44,
	}
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	ins := NewInsight(theme, "whoop", core.PlatformReddit, "7d", at)
	assert.Equal(t, core.InsightComplaint, ins.Type)
	assert.Equal(t, core.InsightID("whoop", core.PlatformReddit, "7d", "battery"), ins.ID)
	assert.Equal(t, "Users report problems with battery", ins.Title)
	assert.Equal(t, "6 posts mention battery and 83% of them are negative. Related terms: batt.", ins.Description)
	assert.Equal(t, 6, ins.ContentCount)
	assert.Equal(t, at, ins.GeneratedAt)
	assert.NoError(t, core.ValidateInsight(ins))
}

func TestDescribe(t *testing.T) {
	theme := core.Theme{
		Keywords:     []string{"sleep"},
		PostCount:    10,
		Distribution: core.Distribution{Positive: 50, Negative: 20, Neutral: 30},
	}

	title, desc := Describe(theme, core.InsightTrend)
	assert.Equal(t, "Sleep is a trending topic", title)
	assert.Equal(t, "Sleep came up in 10 posts (50% positive, 20% negative, 30% neutral).", desc)

	title, _ = Describe(theme, core.InsightPraise)
	assert.Equal(t, "Users praise sleep", title)

	title, desc = Describe(theme, core.InsightFeatureRequest)
	assert.Equal(t, "Possible feature request around sleep", title)
	assert.Equal(t, "10 posts discuss sleep (50% positive, 20% negative).", desc)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Battery", capitalize("battery"))
	assert.Equal(t, "Écran", capitalize("écran"))
	assert.True(t, utf8.ValidString(capitalize("ñandú")))
	assert.Equal(t, "", capitalize(""))
}
