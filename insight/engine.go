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

package insight

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

const (
	DefaultCacheTTL  = 15 * time.Minute
	DefaultCacheSize = 256
)

// Engine loads persisted posts and turns them into themes and insights.
// Results are cached per product, platform and timeframe.
type Engine struct {
	posts          storage.PostRepository
	insights       storage.InsightRepository
	minClusterSize int
	exclude        []string
	cacheSize      int
	cacheTTL       time.Duration
	now            func() time.Time

	themeCache   *expirable.LRU[string, []core.Theme]
	insightCache *expirable.LRU[string, []*core.Insight]

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithInsightRepository persists generated insights.
func WithInsightRepository(repo storage.InsightRepository) Option {
	return func(e *Engine) error {
		e.insights = repo
		return nil
	}
}

// WithMinClusterSize raises the theme size used by GenerateInsights.
// Values below core.MinInsightPosts are ignored there.
func WithMinClusterSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("%w: min cluster size %d", ErrInvalidOption, n)
		}
		e.minClusterSize = n
		return nil
	}
}

// WithExclude adds keywords that never form themes. The product id is
// always excluded.
func WithExclude(words ...string) Option {
	return func(e *Engine) error {
		e.exclude = append(e.exclude, words...)
		return nil
	}
}

// WithCache sets the result cache size and lifetime. A zero size disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Engine) error {
		if size < 0 || ttl < 0 {
			return fmt.Errorf("%w: cache %d/%s", ErrInvalidOption, size, ttl)
		}
		e.cacheSize = size
		e.cacheTTL = ttl
		return nil
	}
}

// NewEngine creates an insight engine over posts.
func NewEngine(posts storage.PostRepository, opts ...Option) (*Engine, error) {
	if posts == nil {
		return nil, ErrPostRepositoryRequired
	}
	e := &Engine{
		posts:          posts,
		minClusterSize: core.MinInsightPosts,
		cacheSize:      DefaultCacheSize,
		cacheTTL:       DefaultCacheTTL,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.cacheSize > 0 {
		e.themeCache = expirable.NewLRU[string, []core.Theme](e.cacheSize, nil, e.cacheTTL)
		e.insightCache = expirable.NewLRU[string, []*core.Insight](e.cacheSize, nil, e.cacheTTL)
	}
	e.logger = e.logger.With("component", "insight")
	return e, nil
}

// Invalidate drops every cached result, e.g. after new posts were ingested.
func (e *Engine) Invalidate() {
	if e.themeCache != nil {
		e.themeCache.Purge()
		e.insightCache.Purge()
	}
}

// Themes clusters the posts of a product published within timeframe.
// The returned slice is shared with the cache and must not be modified.
func (e *Engine) Themes(ctx context.Context, productID, platform, timeframe string, minSize int) ([]core.Theme, error) {
	key := fmt.Sprintf("%s|%s|%s|%d", productID, platform, timeframe, minSize)
	if e.themeCache != nil {
		if themes, ok := e.themeCache.Get(key); ok {
			return themes, nil
		}
	}

	posts, err := e.load(ctx, productID, platform, timeframe)
	if err != nil {
		return nil, err
	}
	themes := ClusterThemes(posts, minSize, e.clusterOptions(productID))
	e.logger.Debug("clustered themes", "product_id", productID, "timeframe", timeframe, "posts", len(posts), "themes", len(themes))

	if e.themeCache != nil {
		e.themeCache.Add(key, themes)
	}
	return themes, nil
}

// GenerateInsights clusters, classifies and stores insights for a product.
// Regenerating overwrites earlier rows for the same seed keywords. Insights
// are ordered by descending confidence.
func (e *Engine) GenerateInsights(ctx context.Context, productID, platform, timeframe string) ([]*core.Insight, error) {
	key := fmt.Sprintf("%s|%s|%s", productID, platform, timeframe)
	if e.insightCache != nil {
		if insights, ok := e.insightCache.Get(key); ok {
			return insights, nil
		}
	}

	posts, err := e.load(ctx, productID, platform, timeframe)
	if err != nil {
		return nil, err
	}
	minSize := max(core.MinInsightPosts, e.minClusterSize)
	themes := ClusterThemes(posts, minSize, e.clusterOptions(productID))

	at := e.now()
	insights := make([]*core.Insight, 0, len(themes))
	for _, theme := range themes {
		if theme.PostCount < core.MinInsightPosts {
			continue
		}
		insights = append(insights, NewInsight(theme, productID, platform, timeframe, at))
	}
	slices.SortFunc(insights, func(a, b *core.Insight) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword, b.Keyword)
	})

	if e.insights != nil && len(insights) > 0 {
		if err := e.insights.SaveInsights(ctx, insights...); err != nil {
			return nil, fmt.Errorf("failed to save insights: %w", err)
		}
	}
	e.logger.Info("generated insights", "product_id", productID, "platform", platform, "timeframe", timeframe,
		"posts", len(posts), "themes", len(themes), "insights", len(insights))

	if e.insightCache != nil {
		e.insightCache.Add(key, insights)
	}
	return insights, nil
}

func (e *Engine) load(ctx context.Context, productID, platform, timeframe string) ([]*core.PostRecord, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, ErrProductRequired
	}
	since, err := Since(timeframe, e.now())
	if err != nil {
		return nil, err
	}
	posts, err := e.posts.ListPosts(ctx, core.PostFilter{ProductID: productID, Platform: platform, Since: since})
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	return posts, nil
}

func (e *Engine) clusterOptions(productID string) ClusterOptions {
	return ClusterOptions{Exclude: append(slices.Clone(e.exclude), productID)}
}
