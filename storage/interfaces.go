package storage

import (
	"context"

	"github.com/poiesic/pulse/core"
)

// VectorStore holds embedding vectors keyed by (content id, content type).
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert inserts or replaces records. A record with the same
	// (ContentID, ContentType) as an existing one overwrites it.
	Upsert(ctx context.Context, records ...*core.IndexedRecord) error

	// Query returns up to opts.Limit records ordered by descending cosine
	// similarity to vector. Records below opts.Threshold are omitted.
	// An empty opts.ContentType matches every type.
	Query(ctx context.Context, vector []float32, opts core.SearchOptions) ([]core.SearchResult, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases the store.
	Close() error
}

// PostRepository persists processed posts together with their annotations.
type PostRepository interface {
	// UpsertPosts inserts or replaces posts keyed by their Id.
	// InsertedAt is preserved for existing posts; UpdatedAt is always refreshed.
	UpsertPosts(ctx context.Context, records ...*core.PostRecord) ([]*core.PostRecord, error)

	// GetPost retrieves a single post.
	// Returns ErrNotFound if the post doesn't exist.
	GetPost(ctx context.Context, id core.ID) (*core.PostRecord, error)

	// ListPosts returns posts matching filter ordered by creation time, oldest first.
	ListPosts(ctx context.Context, filter core.PostFilter) ([]*core.PostRecord, error)

	// Close releases the repository.
	Close() error
}

// InsightRepository persists generated insights.
type InsightRepository interface {
	// SaveInsights upserts insights keyed by their deterministic ID.
	SaveInsights(ctx context.Context, insights ...*core.Insight) error

	// ListInsights returns the insights stored for a product, platform and
	// timeframe, ordered by descending confidence.
	ListInsights(ctx context.Context, productID, platform, timeframe string) ([]*core.Insight, error)

	// Close releases the repository.
	Close() error
}

// CheckpointRepository records progress of long-running batch jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a processor type.
	ClearCheckpoint(ctx context.Context, processorType string) error
}
