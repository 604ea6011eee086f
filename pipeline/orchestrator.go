package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/metrics"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/source"
	"github.com/poiesic/pulse/storage"
	"github.com/robfig/cron/v3"
)

// RunConfig describes what a run ingests.
type RunConfig struct {
	ProductID      string
	Platform       string // Defaults to core.PlatformReddit
	Query          source.Query
	CleanBatchSize int // Defaults to normalize.DefaultBatchSize
}

// Validate checks the configuration before a run starts.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.ProductID) == "" {
		return fmt.Errorf("%w: product id is empty", ErrInvalidRunConfig)
	}
	if err := c.Query.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRunConfig, err)
	}
	return nil
}

func (c RunConfig) platform() string {
	if c.Platform == "" {
		return core.PlatformReddit
	}
	return c.Platform
}

// Orchestrator runs the pipeline stages against injected dependencies.
type Orchestrator struct {
	source     source.Source
	normalizer *normalize.Normalizer
	generator  *embed.Generator
	writer     *index.Writer
	posts      storage.PostRepository

	running atomic.Bool
	stats   statsRecorder
	metrics *metrics.Metrics

	schedMu sync.Mutex
	cron    *cron.Cron

	onSuccess []func(*core.RunReport)

	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMetrics records runs on m instead of a private instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) error {
		if m != nil {
			o.metrics = m
		}
		return nil
	}
}

// WithSuccessHook registers fn to be called after every successful run,
// scheduled or not. Hooks run synchronously before Run returns.
func WithSuccessHook(fn func(*core.RunReport)) Option {
	return func(o *Orchestrator) error {
		if fn != nil {
			o.onSuccess = append(o.onSuccess, fn)
		}
		return nil
	}
}

// New creates an idle orchestrator.
func New(
	src source.Source,
	normalizer *normalize.Normalizer,
	generator *embed.Generator,
	writer *index.Writer,
	posts storage.PostRepository,
	opts ...Option,
) (*Orchestrator, error) {
	switch {
	case src == nil:
		return nil, ErrSourceRequired
	case normalizer == nil:
		return nil, ErrNormalizerRequired
	case generator == nil:
		return nil, ErrGeneratorRequired
	case writer == nil:
		return nil, ErrWriterRequired
	case posts == nil:
		return nil, ErrPostsRequired
	}

	o := &Orchestrator{
		source:     src,
		normalizer: normalizer,
		generator:  generator,
		writer:     writer,
		posts:      posts,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	o.logger = o.logger.With("component", "pipeline")
	return o, nil
}

// Metrics returns the instruments runs are recorded on.
func (o *Orchestrator) Metrics() *metrics.Metrics {
	return o.metrics
}

// Stats returns a snapshot of the run history.
func (o *Orchestrator) Stats() Stats {
	s := o.stats.snapshot()
	s.State = StateIdle
	if o.running.Load() {
		s.State = StateRunning
	}
	return s
}

// Run executes one pipeline run. A request made while another run is in
// progress returns ErrRunInProgress immediately. When a stage fails, the
// partial report is returned along with the error.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*core.RunReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("rejecting run request, a run is in progress", "product_id", cfg.ProductID)
		o.stats.reject()
		o.metrics.Rejected()
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	report := &core.RunReport{
		RunID:     ulid.Make().String(),
		ProductID: cfg.ProductID,
		Subreddit: cfg.Query.Subreddit,
		StartedAt: time.Now().UTC(),
	}
	o.stats.start(report.RunID, report.StartedAt)
	logger := o.logger.With("run_id", report.RunID, "product_id", cfg.ProductID)
	logger.Info("pipeline run started", "subreddit", cfg.Query.Subreddit, "terms", len(cfg.Query.Terms))

	err := o.execute(ctx, cfg, report, logger)
	report.FinishedAt = time.Now().UTC()
	o.stats.finish(report, err)
	o.metrics.ObserveRun(report, err)

	if err != nil {
		logger.Error("pipeline run failed", "err", err, "duration", report.Duration())
		return report, err
	}
	c := report.Counts
	logger.Info("pipeline run finished",
		"scraped", c.Scraped,
		"persisted", c.Persisted,
		"embedded", c.Embedded,
		"indexed", c.Indexed,
		"tokens", report.Tokens,
		"cost", report.Cost,
		"duration", report.Duration())
	for _, fn := range o.onSuccess {
		fn(report)
	}
	return report, nil
}

func (o *Orchestrator) execute(ctx context.Context, cfg RunConfig, report *core.RunReport, logger *slog.Logger) error {
	raws, err := o.source.Fetch(ctx, cfg.Query)
	if err != nil {
		return fmt.Errorf("fetch stage: %w", err)
	}
	report.Counts.Scraped = len(raws)
	if len(raws) == 0 {
		logger.Info("nothing fetched")
		return nil
	}

	items, err := o.normalizer.CleanBatch(ctx, raws, cfg.CleanBatchSize)
	if err != nil {
		return fmt.Errorf("clean stage: %w", err)
	}
	report.Counts.Processed = len(items)

	persisted, err := o.persist(ctx, cfg, items)
	if err != nil {
		return fmt.Errorf("persist stage: %w", err)
	}
	report.Counts.Persisted = persisted

	embedded, err := o.generator.Embed(ctx, items)
	if err != nil {
		return fmt.Errorf("embed stage: %w", err)
	}
	for i := range embedded {
		if embedded[i].Success {
			report.Counts.Embedded++
			report.Tokens += embedded[i].Tokens
			report.Cost += embedded[i].Cost
		} else {
			report.Counts.EmbeddingFailures++
		}
	}

	stats, err := o.writer.Index(ctx, embedded)
	report.Counts.Indexed = stats.Indexed
	report.Counts.IndexFailed = stats.Failed
	report.Counts.IndexSkipped = stats.Skipped
	if err != nil {
		return fmt.Errorf("index stage: %w", err)
	}
	return nil
}

// persist writes every item that has an upstream id, fallbacks included.
// A post fetched under several terms is written once, from its last
// occurrence, so no single upsert touches the same row twice.
func (o *Orchestrator) persist(ctx context.Context, cfg RunConfig, items []core.ProcessedItem) (int, error) {
	records := make([]*core.PostRecord, 0, len(items))
	seen := make(map[core.ID]int, len(items))
	for i := range items {
		if strings.TrimSpace(items[i].ExternalID) == "" {
			continue
		}
		record := core.NewPostRecord(&items[i], cfg.platform(), cfg.ProductID)
		if j, ok := seen[record.Id]; ok {
			records[j] = record
			continue
		}
		seen[record.Id] = len(records)
		records = append(records, record)
	}
	if dups := len(items) - len(records); dups > 0 {
		o.logger.Debug("merged duplicate posts", "count", dups)
	}
	if len(records) == 0 {
		return 0, nil
	}
	saved, err := o.posts.UpsertPosts(ctx, records...)
	if err != nil {
		return 0, err
	}
	return len(saved), nil
}
