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

// Package pulse wires the ingestion pipeline, vector search and insight
// engine into a single Engine.
package pulse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/pulse/ai"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/insight"
	"github.com/poiesic/pulse/metrics"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/pipeline"
	"github.com/poiesic/pulse/reindex"
	"github.com/poiesic/pulse/search"
	"github.com/poiesic/pulse/source"
	"github.com/poiesic/pulse/storage"
)

var (
	// ErrSourceRequired is returned when Deps has no source.
	ErrSourceRequired = errors.New("source required")
	// ErrProviderRequired is returned when Deps has no AI provider.
	ErrProviderRequired = errors.New("AI provider required")
	// ErrStorageRequired is returned when Deps lacks a post repository,
	// insight repository or vector store.
	ErrStorageRequired = errors.New("storage required")
)

// Deps are the external parts an Engine is built from.
type Deps struct {
	Source      source.Source
	Provider    ai.AIProvider
	Posts       storage.PostRepository
	Insights    storage.InsightRepository
	Vectors     storage.VectorStore
	Checkpoints storage.CheckpointRepository // optional, enables reindex resume
}

// Engine is the application facade over every component.
type Engine struct {
	deps Deps

	normalizer   *normalize.Normalizer
	generator    *embed.Generator
	writer       *index.Writer
	searcher     *search.Searcher
	orchestrator *pipeline.Orchestrator
	insights     *insight.Engine
	metrics      *metrics.Metrics

	closers []io.Closer
	base    *slog.Logger
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*settings) error

type settings struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	normalizeOpts []normalize.Option
	embedOpts     []embed.Option
	indexOpts     []index.Option
	insightOpts   []insight.Option
	closers       []io.Closer
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics records pipeline runs on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) error {
		s.metrics = m
		return nil
	}
}

// WithNormalizerOptions passes options to the text normalizer.
func WithNormalizerOptions(opts ...normalize.Option) Option {
	return func(s *settings) error {
		s.normalizeOpts = append(s.normalizeOpts, opts...)
		return nil
	}
}

// WithEmbedOptions passes options to the embedding generator.
func WithEmbedOptions(opts ...embed.Option) Option {
	return func(s *settings) error {
		s.embedOpts = append(s.embedOpts, opts...)
		return nil
	}
}

// WithIndexOptions passes options to the vector index writer.
func WithIndexOptions(opts ...index.Option) Option {
	return func(s *settings) error {
		s.indexOpts = append(s.indexOpts, opts...)
		return nil
	}
}

// WithInsightOptions passes options to the insight engine.
func WithInsightOptions(opts ...insight.Option) Option {
	return func(s *settings) error {
		s.insightOpts = append(s.insightOpts, opts...)
		return nil
	}
}

// WithCloser makes Close release c after the Engine's own components.
// Closers run in reverse registration order.
func WithCloser(c io.Closer) Option {
	return func(s *settings) error {
		if c != nil {
			s.closers = append(s.closers, c)
		}
		return nil
	}
}

// New builds an Engine from injected dependencies. The Engine does not own
// them; register them with WithCloser to have Close release them.
func New(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Source == nil:
		return nil, ErrSourceRequired
	case deps.Provider == nil:
		return nil, ErrProviderRequired
	case deps.Posts == nil || deps.Insights == nil || deps.Vectors == nil:
		return nil, ErrStorageRequired
	}

	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	e := &Engine{
		deps:    deps,
		metrics: s.metrics,
		closers: s.closers,
		base:    s.logger,
		logger:  s.logger.With("component", "engine"),
	}

	var err error
	e.normalizer, err = normalize.NewNormalizer(append([]normalize.Option{normalize.WithLogger(s.logger)}, s.normalizeOpts...)...)
	if err != nil {
		return nil, err
	}
	e.generator, err = embed.NewGenerator(deps.Provider, append([]embed.Option{embed.WithLogger(s.logger)}, s.embedOpts...)...)
	if err != nil {
		return nil, err
	}
	e.writer, err = index.NewWriter(deps.Vectors, append([]index.Option{index.WithLogger(s.logger)}, s.indexOpts...)...)
	if err != nil {
		e.generator.Release()
		return nil, err
	}
	e.searcher, err = search.NewSearcher(e.generator, e.writer,
		search.WithLogger(s.logger),
		search.WithPosts(deps.Posts),
		search.WithLexicon(e.normalizer.Lexicon()),
	)
	if err != nil {
		e.generator.Release()
		return nil, err
	}
	e.insights, err = insight.NewEngine(deps.Posts, append([]insight.Option{
		insight.WithLogger(s.logger),
		insight.WithInsightRepository(deps.Insights),
	}, s.insightOpts...)...)
	if err != nil {
		e.generator.Release()
		return nil, err
	}
	e.orchestrator, err = pipeline.New(deps.Source, e.normalizer, e.generator, e.writer, deps.Posts,
		pipeline.WithLogger(s.logger),
		pipeline.WithMetrics(s.metrics),
		pipeline.WithSuccessHook(func(*core.RunReport) { e.insights.Invalidate() }),
	)
	if err != nil {
		e.generator.Release()
		return nil, err
	}
	return e, nil
}

// RunPipeline executes one ingestion run. Cached themes and insights are
// dropped after a successful run.
func (e *Engine) RunPipeline(ctx context.Context, cfg pipeline.RunConfig) (*core.RunReport, error) {
	return e.orchestrator.Run(ctx, cfg)
}

// RunScheduled starts running cfg on a cron spec.
func (e *Engine) RunScheduled(spec string, cfg pipeline.RunConfig) error {
	return e.orchestrator.StartSchedule(spec, cfg)
}

// StopScheduled stops the schedule. The returned context is done once an
// in-flight run has finished.
func (e *Engine) StopScheduled() context.Context {
	return e.orchestrator.StopSchedule()
}

// NextRun returns the next scheduled trigger, or the zero time.
func (e *Engine) NextRun() time.Time {
	return e.orchestrator.NextRun()
}

// SearchSimilar returns indexed posts most similar to text.
func (e *Engine) SearchSimilar(ctx context.Context, text string, opts core.SearchOptions) ([]search.Hit, error) {
	return e.searcher.Search(ctx, text, opts)
}

// ClusterThemes groups a product's posts by keyword.
func (e *Engine) ClusterThemes(ctx context.Context, productID, platform, timeframe string, minSize int) ([]core.Theme, error) {
	return e.insights.Themes(ctx, productID, platform, timeframe, minSize)
}

// GenerateInsights classifies themes into insights and persists them.
func (e *Engine) GenerateInsights(ctx context.Context, productID, platform, timeframe string) ([]*core.Insight, error) {
	return e.insights.GenerateInsights(ctx, productID, platform, timeframe)
}

// Stats returns the pipeline run history.
func (e *Engine) Stats() pipeline.Stats {
	return e.orchestrator.Stats()
}

// Metrics returns the Prometheus instruments runs are recorded on.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Usage returns cumulative embedding token and cost totals.
func (e *Engine) Usage() embed.Usage {
	return e.generator.Usage()
}

// Reindex re-embeds persisted posts into the vector index. Progress is
// written to progress, which may be nil.
func (e *Engine) Reindex(ctx context.Context, cfg *reindex.Config, progress io.Writer) (*reindex.Result, error) {
	opts := []reindex.Option{reindex.WithLogger(e.base)}
	if e.deps.Checkpoints != nil {
		opts = append(opts, reindex.WithCheckpoints(e.deps.Checkpoints))
	}
	r, err := reindex.NewReindexer(e.deps.Posts, e.generator, e.writer, cfg, progress, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Close stops any schedule, waits for an in-flight scheduled run, then
// releases the Engine's own components and the closers registered with
// WithCloser. Deps not registered that way are left open.
func (e *Engine) Close() error {
	<-e.orchestrator.StopSchedule().Done()
	e.generator.Release()

	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.logger.Error("error closing dependency", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
