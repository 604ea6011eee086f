package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/poiesic/pulse/ai/mock"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/retry"
	"github.com/poiesic/pulse/source"
	"github.com/poiesic/pulse/storage"
	"github.com/poiesic/pulse/storage/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	posts []core.RawPost
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) Fetch(ctx context.Context, q source.Query) ([]core.RawPost, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.posts, f.err
}

type fixture struct {
	source   *fakeSource
	embedder *mock.MockEmbedder
	stores   *badger.Stores
	orch     *Orchestrator
}

func newFixture(t *testing.T, genOpts ...embed.Option) *fixture {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	normalizer, err := normalize.NewNormalizer(normalize.WithBatchDelay(0))
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	base := []embed.Option{embed.WithBatchDelay(0), embed.WithRetryPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond})}
	generator, err := embed.NewGenerator(mock.NewMockProviderWithEmbedder(embedder), append(base, genOpts...)...)
	require.NoError(t, err)

	writer, err := index.NewWriter(stores.Vectors, index.WithBatchDelay(0))
	require.NoError(t, err)

	src := &fakeSource{}
	orch, err := New(src, normalizer, generator, writer, stores.Posts)
	require.NoError(t, err)

	return &fixture{source: src, embedder: embedder, stores: stores, orch: orch}
}

func runConfig() RunConfig {
	return RunConfig{
		ProductID: "whoop",
		Query:     source.Query{Subreddit: "whoop", Terms: []string{"battery"}},
	}
}

func samplePosts() []core.RawPost {
	created := time.Now().Add(-time.Hour).UTC()
	return []core.RawPost{
		{ExternalID: "a1", Title: "Battery drains overnight", Body: "Terrible battery since the update.", CreatedAt: created, Subreddit: "whoop"},
		{ExternalID: "a2", Title: "Love the sleep tracking", Body: "Sleep data is great!", CreatedAt: created, Subreddit: "whoop"},
		{ExternalID: "a3", CreatedAt: created, Subreddit: "whoop"},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	f := newFixture(t)
	o := f.orch
	cases := []struct {
		name string
		err  error
		call func() (*Orchestrator, error)
	}{
		{"source", ErrSourceRequired, func() (*Orchestrator, error) { return New(nil, o.normalizer, o.generator, o.writer, o.posts) }},
		{"normalizer", ErrNormalizerRequired, func() (*Orchestrator, error) { return New(o.source, nil, o.generator, o.writer, o.posts) }},
		{"generator", ErrGeneratorRequired, func() (*Orchestrator, error) { return New(o.source, o.normalizer, nil, o.writer, o.posts) }},
		{"writer", ErrWriterRequired, func() (*Orchestrator, error) { return New(o.source, o.normalizer, o.generator, nil, o.posts) }},
		{"posts", ErrPostsRequired, func() (*Orchestrator, error) { return New(o.source, o.normalizer, o.generator, o.writer, nil) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.call()
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRun_AllStages(t *testing.T) {
	f := newFixture(t)
	f.source.posts = samplePosts()
	ctx := context.Background()

	report, err := f.orch.Run(ctx, runConfig())
	require.NoError(t, err)

	_, err = ulid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.StageCounts{
		Scraped:           3,
		Processed:         3,
		Persisted:         3,
		Embedded:          2,
		EmbeddingFailures: 1,
		Indexed:           2,
		IndexSkipped:      1,
	}, report.Counts)
	assert.Positive(t, report.Tokens)
	assert.Positive(t, report.Cost)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	posts, err := f.stores.Posts.ListPosts(ctx, core.PostFilter{ProductID: "whoop"})
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	count, err := f.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats := f.orch.Stats()
	assert.Equal(t, StateIdle, stats.State)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessfulRuns)
	assert.Equal(t, report.RunID, stats.LastRunID)
	assert.Equal(t, report.Counts, stats.Totals)
	assert.Empty(t, stats.LastError)
	assert.False(t, stats.LastSuccessAt.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.orch.Metrics().Runs.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.orch.Metrics().Items.WithLabelValues("indexed")))
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.source.posts = samplePosts()
	ctx := context.Background()

	_, err := f.orch.Run(ctx, runConfig())
	require.NoError(t, err)
	_, err = f.orch.Run(ctx, runConfig())
	require.NoError(t, err)

	posts, err := f.stores.Posts.ListPosts(ctx, core.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	count, err := f.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 6, f.orch.Stats().Totals.Scraped)
}

func TestRun_NothingFetched(t *testing.T) {
	f := newFixture(t)

	report, err := f.orch.Run(context.Background(), runConfig())
	require.NoError(t, err)
	assert.Zero(t, report.Counts)
	assert.Zero(t, f.embedder.CallCount())
}

func TestRun_StageFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.source.err = errors.Join(source.ErrAllTermsFailed, errors.New("503"))

	_, err := f.orch.Run(context.Background(), runConfig())
	require.ErrorIs(t, err, source.ErrAllTermsFailed)
	assert.ErrorContains(t, err, "fetch stage")

	stats := f.orch.Stats()
	assert.Equal(t, StateIdle, stats.State)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Contains(t, stats.LastError, "503")

	f.source.err = nil
	f.source.posts = samplePosts()
	_, err = f.orch.Run(context.Background(), runConfig())
	require.NoError(t, err)
	stats = f.orch.Stats()
	assert.Equal(t, 1, stats.SuccessfulRuns)
	assert.Empty(t, stats.LastError)
}

func TestRun_EmbeddingServiceDown(t *testing.T) {
	f := newFixture(t, embed.WithBreaker(1, time.Minute))
	f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}
	f.source.posts = samplePosts()

	report, err := f.orch.Run(context.Background(), runConfig())
	require.ErrorIs(t, err, embed.ErrServiceUnavailable)
	assert.Equal(t, 3, report.Counts.Persisted, "posts persisted before the embed stage")
	assert.Zero(t, report.Counts.Indexed)
	assert.Equal(t, 1, f.orch.Stats().FailedRuns)
}

func TestRun_InvalidConfig(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Run(context.Background(), RunConfig{Query: runConfig().Query})
	assert.ErrorIs(t, err, ErrInvalidRunConfig)
	_, err = f.orch.Run(context.Background(), RunConfig{ProductID: "whoop"})
	assert.ErrorIs(t, err, source.ErrInvalidQuery)
	assert.Zero(t, f.orch.Stats().TotalRuns)
}

func TestRun_SingleFlight(t *testing.T) {
	f := newFixture(t)
	f.source.gate = make(chan struct{})
	f.source.posts = samplePosts()

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.orch.Run(context.Background(), runConfig())
	}()
	require.Eventually(t, func() bool { return f.source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, f.orch.Stats().State)

	_, err := f.orch.Run(context.Background(), runConfig())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(f.source.gate)
	wg.Wait()
	require.NoError(t, firstErr)

	stats := f.orch.Stats()
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.RejectedRuns)
	assert.Equal(t, int32(1), f.source.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.orch.Metrics().RejectedRuns))
}

func TestRun_Canceled(t *testing.T) {
	f := newFixture(t)
	f.source.gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Run(ctx, runConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, f.orch.Stats().State)
}

func TestRun_SuccessHook(t *testing.T) {
	f := newFixture(t)
	var reports []string
	o, err := New(f.orch.source, f.orch.normalizer, f.orch.generator, f.orch.writer, f.orch.posts,
		WithSuccessHook(func(r *core.RunReport) { reports = append(reports, r.RunID) }),
		WithSuccessHook(nil))
	require.NoError(t, err)

	f.source.err = errors.New("503")
	_, err = o.Run(context.Background(), runConfig())
	require.Error(t, err)
	assert.Empty(t, reports, "failed runs do not fire hooks")

	f.source.err = nil
	f.source.posts = samplePosts()
	report, err := o.Run(context.Background(), runConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{report.RunID}, reports)
}

// uniquePosts fails any upsert that names the same post twice, the way a
// PostgreSQL ON CONFLICT batch does.
type uniquePosts struct {
	storage.PostRepository
}

func (u *uniquePosts) UpsertPosts(ctx context.Context, records ...*core.PostRecord) ([]*core.PostRecord, error) {
	seen := map[core.ID]bool{}
	for _, r := range records {
		if seen[r.Id] {
			return nil, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[r.Id] = true
	}
	return u.PostRepository.UpsertPosts(ctx, records...)
}

type uniqueVectors struct {
	storage.VectorStore
}

func (u *uniqueVectors) Upsert(ctx context.Context, records ...*core.IndexedRecord) error {
	seen := map[string]bool{}
	for _, r := range records {
		key := r.ContentType + ":" + r.ContentID
		if seen[key] {
			return errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[key] = true
	}
	return u.VectorStore.Upsert(ctx, records...)
}

func TestRun_PostMatchingSeveralTerms(t *testing.T) {
	f := newFixture(t)
	writer, err := index.NewWriter(&uniqueVectors{f.stores.Vectors}, index.WithBatchDelay(0))
	require.NoError(t, err)
	orch, err := New(f.source, f.orch.normalizer, f.orch.generator, writer, &uniquePosts{f.stores.Posts})
	require.NoError(t, err)

	posts := samplePosts()[:2]
	again := posts[0]
	again.SearchTerm = "sync"
	f.source.posts = append(posts, again)

	report, err := orch.Run(context.Background(), runConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts.Scraped)
	assert.Equal(t, 2, report.Counts.Persisted)
	assert.Equal(t, 3, report.Counts.Indexed)

	count, err := f.stores.Vectors.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stored, err := f.stores.Posts.GetPost(context.Background(), core.PostID(core.PlatformReddit, "a1"))
	require.NoError(t, err)
	assert.Equal(t, "sync", stored.Post.SearchTerm, "last occurrence wins")
}
