package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/pulse/ai/mock"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/retry"
	"github.com/poiesic/pulse/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	stores    *badger.Stores
	embedder  *mock.MockEmbedder
	generator *embed.Generator
	writer    *index.Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	generator, err := embed.NewGenerator(mock.NewMockProviderWithEmbedder(embedder),
		embed.WithBatchDelay(0),
		embed.WithRetryPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}))
	require.NoError(t, err)

	writer, err := index.NewWriter(stores.Vectors, index.WithBatchDelay(0))
	require.NoError(t, err)

	return &fixture{stores: stores, embedder: embedder, generator: generator, writer: writer}
}

// seed persists and indexes posts whose cleaned text is their title.
func (f *fixture) seed(t *testing.T, titles ...string) {
	t.Helper()
	ctx := context.Background()
	items := make([]core.ProcessedItem, len(titles))
	for i, title := range titles {
		items[i] = core.ProcessedItem{
			RawPost:     core.RawPost{ExternalID: title, Title: title, CreatedAt: time.Now().Add(-time.Hour)},
			CleanedText: title,
		}
		_, err := f.stores.Posts.UpsertPosts(ctx, core.NewPostRecord(&items[i], core.PlatformReddit, "whoop"))
		require.NoError(t, err)
	}
	embedded, err := f.generator.Embed(ctx, items)
	require.NoError(t, err)
	_, err = f.writer.Index(ctx, embedded)
	require.NoError(t, err)
}

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(f.generator, f.writer)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(f.generator, f.writer, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil generator", func(t *testing.T) {
		_, err := NewSearcher(nil, f.writer)
		assert.Equal(t, ErrGeneratorRequired, err)
	})

	t.Run("nil writer", func(t *testing.T) {
		_, err := NewSearcher(f.generator, nil)
		assert.Equal(t, ErrWriterRequired, err)
	})

	t.Run("nil lexicon", func(t *testing.T) {
		_, err := NewSearcher(f.generator, f.writer, WithLexicon(nil))
		assert.ErrorIs(t, err, normalize.ErrLexiconRequired)
	})
}

func TestSearchByText_EmptyIndex(t *testing.T) {
	f := newFixture(t)
	searcher, err := NewSearcher(f.generator, f.writer)
	require.NoError(t, err)

	results, err := searcher.SearchByText(context.Background(), "battery life", core.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchByText_ExactMatchFirst(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "battery drains overnight", "strap is comfortable", "sleep tracking accuracy")
	searcher, err := NewSearcher(f.generator, f.writer)
	require.NoError(t, err)

	results, err := searcher.SearchByText(context.Background(), "strap is comfortable", core.SearchOptions{Limit: 3, Threshold: -1})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "strap is comfortable", results[0].Record.Text)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestSearchByText_Errors(t *testing.T) {
	f := newFixture(t)
	searcher, err := NewSearcher(f.generator, f.writer)
	require.NoError(t, err)

	_, err = searcher.SearchByText(context.Background(), "   ", core.SearchOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("service down")
	}
	_, err = searcher.SearchByText(context.Background(), "battery", core.SearchOptions{})
	assert.ErrorContains(t, err, "service down")
}

type recordingMonitor struct {
	stages []string
}

func (m *recordingMonitor) Start(string)                   { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterEmbedding([]float32)       { m.stages = append(m.stages, "embedding") }
func (m *recordingMonitor) AfterQuery([]core.SearchResult) { m.stages = append(m.stages, "query") }
func (m *recordingMonitor) Finish([]Hit)                   { m.stages = append(m.stages, "finish") }

func TestSearch_JoinsPostsAndFlagsVerbatim(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "the battery drains overnight", "strap is comfortable")
	searcher, err := NewSearcher(f.generator, f.writer, WithPosts(f.stores.Posts))
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	hits, err := searcher.SearchWithMonitor(context.Background(), "battery drains overnight", core.SearchOptions{Limit: 2, Threshold: -1}, monitor)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	var verbatim *Hit
	for i := range hits {
		require.NotNil(t, hits[i].Post)
		assert.Equal(t, "whoop", hits[i].Post.ProductID)
		if hits[i].Verbatim {
			verbatim = &hits[i]
		}
	}
	require.NotNil(t, verbatim)
	assert.Equal(t, "the battery drains overnight", verbatim.Record.Text)
	assert.Equal(t, []string{"start", "embedding", "query", "finish"}, monitor.stages)
}

func TestLogMonitor(t *testing.T) {
	m := NewLogMonitor(slog.Default())
	m.Start("q")
	m.AfterEmbedding([]float32{1})
	m.AfterQuery(nil)
	m.Finish(nil)
}

func TestVerbatim(t *testing.T) {
	lex := normalize.DefaultLexicon()
	assert.True(t, verbatim(lex, "The battery, it drains!", "battery drains"))
	assert.True(t, verbatim(lex, "Battery DRAINS overnight", "the battery drains"), "stopwords and case are ignored")
	assert.False(t, verbatim(lex, "The battery is fine", "battery drains"))
	assert.False(t, verbatim(lex, "anything", "the a an"))

	lex.AddStopwords("battery")
	assert.True(t, verbatim(lex, "it drains", "battery drains"), "lexicon stopwords apply")
}
