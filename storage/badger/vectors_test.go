package badger

import (
	"context"
	"testing"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(id string, v ...float32) *core.IndexedRecord {
	return &core.IndexedRecord{ContentID: id, ContentType: core.ContentTypePost, Text: id, Vector: v}
}

func TestVectorStore_QueryOrdering(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx,
		vec("same", 1, 0),
		vec("close", 0.9, 0.1),
		vec("orthogonal", 0, 1),
		vec("opposite", -1, 0),
	))

	results, err := stores.Vectors.Query(ctx, []float32{1, 0}, core.SearchOptions{Limit: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "same", results[0].Record.ContentID)
	assert.Equal(t, "close", results[1].Record.ContentID)
	assert.Equal(t, "orthogonal", results[2].Record.ContentID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	top, err := stores.Vectors.Query(ctx, []float32{1, 0}, core.SearchOptions{Limit: 1, Threshold: -1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.InDelta(t, 1.0, top[0].Similarity, 1e-9)
}

func TestVectorStore_UpsertOverwrites(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx, vec("a", 1, 0)))
	require.NoError(t, stores.Vectors.Upsert(ctx, vec("a", 0, 1)))

	n, err := stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := stores.Vectors.Query(ctx, []float32{0, 1}, core.SearchOptions{Limit: 5, Threshold: 0.99})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Record.ContentID)
}

func TestVectorStore_ContentTypeFilter(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	other := vec("x", 1, 0)
	other.ContentType = "comment"
	require.NoError(t, stores.Vectors.Upsert(ctx, vec("p", 1, 0), other))

	results, err := stores.Vectors.Query(ctx, []float32{1, 0}, core.SearchOptions{Limit: 5, ContentType: "comment"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Record.ContentID)

	results, err = stores.Vectors.Query(ctx, []float32{1, 0}, core.SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	require.NoError(t, stores.Vectors.Upsert(ctx, vec("three", 1, 0, 0)))

	results, err := stores.Vectors.Query(ctx, []float32{1, 0}, core.SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	assert.Empty(t, results)
}

func TestVectorStore_Invalid(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	assert.ErrorIs(t, stores.Vectors.Upsert(ctx, vec("empty")), core.ErrInvalidRecord)

	_, err := stores.Vectors.Query(ctx, nil, core.SearchOptions{Limit: 1})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = stores.Vectors.Query(ctx, []float32{1}, core.SearchOptions{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
