package pulse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/pulse/ai/openai"
	"github.com/poiesic/pulse/config"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/insight"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/pipeline"
	"github.com/poiesic/pulse/retry"
	"github.com/poiesic/pulse/source"
	"github.com/poiesic/pulse/storage/badger"
	"github.com/poiesic/pulse/storage/chromem"
	"github.com/poiesic/pulse/storage/postgres"
)

// schemaTimeout bounds schema creation when opening PostgreSQL.
const schemaTimeout = 30 * time.Second

// Open builds an Engine from cfg: the configured source, an OpenAI-compatible
// embedding provider and the selected storage backend. Options given here are
// applied after those derived from cfg. Open registers everything it creates
// with WithCloser, so Close releases the provider and storage.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	logger := s.logger

	deps := Deps{}
	var closers []io.Closer
	fail := func(err error) (*Engine, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return fail(err)
	}
	deps.Source = src

	if err := openStorage(context.Background(), cfg, &deps, &closers, s); err != nil {
		return fail(err)
	}

	provider, err := openai.NewProvider(cfg.AI())
	if err != nil {
		return fail(fmt.Errorf("failed to create embedding provider: %w", err))
	}
	deps.Provider = provider
	closers = append(closers, provider)

	derived := append(fromConfig(cfg), opts...)
	for _, c := range closers {
		derived = append(derived, WithCloser(c))
	}
	e, err := New(deps, derived...)
	if err != nil {
		return fail(err)
	}
	return e, nil
}

// RunConfig builds the default pipeline run from cfg.
func RunConfig(cfg *config.Config) pipeline.RunConfig {
	return pipeline.RunConfig{
		ProductID:      cfg.Pipeline.ProductID,
		Platform:       cfg.Pipeline.Platform,
		Query:          cfg.Query(),
		CleanBatchSize: cfg.Pipeline.CleanBatchSize,
	}
}

func fromConfig(cfg *config.Config) []Option {
	e := cfg.Embedding
	indexOpts := []index.Option{
		index.WithBatchSize(cfg.Index.BatchSize),
		index.WithBatchDelay(cfg.Index.BatchDelay),
	}
	if cfg.Pipeline.Platform != "" {
		indexOpts = append(indexOpts, index.WithPlatform(cfg.Pipeline.Platform))
	}
	return []Option{
		WithNormalizerOptions(normalize.WithBatchDelay(cfg.Pipeline.CleanBatchDelay)),
		WithEmbedOptions(
			embed.WithBatchSize(e.BatchSize),
			embed.WithBatchDelay(e.BatchDelay),
			embed.WithMaxChars(e.MaxChars),
			embed.WithCallTimeout(e.CallTimeout),
			embed.WithRetryPolicy(retry.Policy{MaxAttempts: e.MaxAttempts, BaseDelay: e.RetryDelay, Backoff: retry.Linear}),
			embed.WithConcurrency(e.Concurrency),
			embed.WithRateLimit(e.RateLimit),
			embed.WithBreaker(e.BreakerThreshold, e.BreakerTimeout),
			embed.WithUnitPrice(e.UnitPrice),
		),
		WithIndexOptions(indexOpts...),
		WithInsightOptions(
			insight.WithMinClusterSize(cfg.Insight.MinClusterSize),
			insight.WithCache(cfg.Insight.CacheSize, cfg.Insight.CacheTTL),
			insight.WithExclude(cfg.Insight.Exclude...),
		),
	}
}

func openSource(cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	if cfg.Source.Kind == config.SourceFile {
		return source.NewFile(cfg.Source.File, logger), nil
	}
	opts := []source.RedditOption{
		source.WithLogger(logger),
		source.WithBaseURL(cfg.Source.BaseURL),
		source.WithUserAgent(cfg.Source.UserAgent),
		source.WithTimeout(cfg.Source.Timeout),
		source.WithRequestDelay(cfg.Source.RequestDelay),
	}
	if cfg.Source.BearerToken != "" {
		opts = append(opts, source.WithBearerToken(cfg.Source.BearerToken))
	}
	return source.NewReddit(opts...)
}

func openStorage(ctx context.Context, cfg *config.Config, deps *Deps, closers *[]io.Closer, s *settings) error {
	sc := cfg.Storage
	switch sc.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(postgres.Options{
			DSN:             sc.DSN,
			Driver:          sc.Driver,
			MaxOpenConns:    sc.MaxOpenConns,
			ConnMaxLifetime: sc.ConnMaxLifetime,
			Logger:          s.logger,
		})
		if err != nil {
			return err
		}
		*closers = append(*closers, db)

		ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
		defer cancel()
		if err := postgres.CreateSchema(ctx, db); err != nil {
			return err
		}
		deps.Posts = postgres.NewPostRepository(db)
		deps.Insights = postgres.NewInsightRepository(db)
		deps.Vectors = postgres.NewVectorStore(db)
		return nil

	case config.BackendBadger, config.BackendChromem:
		stores, err := badger.OpenStores(sc.Path, sc.InMemory)
		if err != nil {
			return err
		}
		*closers = append(*closers, stores)
		deps.Posts = stores.Posts
		deps.Insights = stores.Insights
		deps.Checkpoints = stores.Checkpoints
		deps.Vectors = stores.Vectors
		if sc.Backend == config.BackendBadger {
			return nil
		}

		opts := []chromem.Option{chromem.WithLogger(s.logger)}
		if sc.ChromemPath != "" {
			opts = append(opts, chromem.WithPath(sc.ChromemPath, sc.ChromemCompress))
		}
		if sc.Collection != "" {
			opts = append(opts, chromem.WithCollection(sc.Collection))
		}
		store, err := chromem.New(opts...)
		if err != nil {
			return err
		}
		*closers = append(*closers, store)
		deps.Vectors = store
		return nil
	}
	return fmt.Errorf("%w: %q", config.ErrUnknownBackend, sc.Backend)
}
