// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"time"

	"github.com/google/uuid"
)

// MinInsightPosts is the smallest theme that can become an insight.
const MinInsightPosts = 3

// InsightType classifies a theme.
type InsightType string

const (
	InsightComplaint      InsightType = "complaint"
	InsightPraise         InsightType = "praise"
	InsightTrend          InsightType = "trend"
	InsightFeatureRequest InsightType = "feature_request"
)

// Valid reports whether t is one of the known insight types.
func (t InsightType) Valid() bool {
	switch t {
	case InsightComplaint, InsightPraise, InsightTrend, InsightFeatureRequest:
		return true
	}
	return false
}

// Distribution is the share of positive, negative and neutral posts, in percent.
type Distribution struct {
	Positive float64
	Negative float64
	Neutral  float64
}

// Theme is a cluster of posts sharing similar keywords. Themes are not persisted.
type Theme struct {
	Keywords         []string // Seed keyword first
	PostIDs          []ID
	PostCount        int
	AverageSentiment float64
	Distribution     Distribution
	Confidence       float64
}

// Keyword returns the seed keyword of the theme.
func (t *Theme) Keyword() string {
	if len(t.Keywords) == 0 {
		return ""
	}
	return t.Keywords[0]
}

// Insight is a classified theme for a product, platform and timeframe.
type Insight struct {
	ID               uuid.UUID
	ProductID        string
	Platform         string
	Timeframe        string
	Type             InsightType
	Keyword          string
	Keywords         []string
	Title            string
	Description      string
	ContentCount     int
	Confidence       float64
	AverageSentiment float64
	Distribution     Distribution
	GeneratedAt      time.Time
}

// InsightID derives a stable ID so regenerating insights for the same
// product, platform, timeframe and seed keyword overwrites the previous row.
func InsightID(productID, platform, timeframe, keyword string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productID+"|"+platform+"|"+timeframe+"|"+keyword))
}
