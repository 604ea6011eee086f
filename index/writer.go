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

// Package index writes embedded posts into a vector store and serves
// similarity queries against it.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

const (
	DefaultBatchSize  = 100
	DefaultBatchDelay = 500 * time.Millisecond
	DefaultLimit      = 10
)

// Writer upserts embedded items into a storage.VectorStore.
type Writer struct {
	store       storage.VectorStore
	batchSize   int
	batchDelay  time.Duration
	platform    string
	contentType string
	logger      *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer) error

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// WithBatchSize sets how many records go into one upsert.
func WithBatchSize(size int) Option {
	return func(w *Writer) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		w.batchSize = size
		return nil
	}
}

// WithBatchDelay sets the pause between upserts.
func WithBatchDelay(d time.Duration) Option {
	return func(w *Writer) error {
		w.batchDelay = d
		return nil
	}
}

// WithPlatform sets the platform used to derive content ids.
func WithPlatform(platform string) Option {
	return func(w *Writer) error {
		w.platform = platform
		return nil
	}
}

// NewWriter creates a Writer over store.
func NewWriter(store storage.VectorStore, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	w := &Writer{
		store:       store,
		batchSize:   DefaultBatchSize,
		batchDelay:  DefaultBatchDelay,
		platform:    core.PlatformReddit,
		contentType: core.ContentTypePost,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "index")
	return w, nil
}

// ContentID is the vector store key of a post: its storage ID in decimal,
// so search hits can be joined back to the post repository.
func ContentID(platform, externalID string) string {
	return strconv.FormatUint(uint64(core.PostID(platform, externalID)), 10)
}

// ParseContentID reverses ContentID.
func ParseContentID(contentID string) (core.ID, error) {
	id, err := strconv.ParseUint(contentID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content id %q: %w", contentID, err)
	}
	return core.ID(id), nil
}

// Record converts an embedded item into an index entry.
func (w *Writer) Record(item *core.EmbeddedItem) *core.IndexedRecord {
	meta := map[string]string{
		"external_id": item.ExternalID,
		"platform":    w.platform,
		"subreddit":   item.Subreddit,
		"author":      item.Author,
		"title":       item.Title,
		"permalink":   item.Permalink,
		"sentiment":   string(item.Sentiment.Label),
		"model":       item.Model,
	}
	if !item.CreatedAt.IsZero() {
		meta["created_at"] = item.CreatedAt.UTC().Format(time.RFC3339)
	}
	return &core.IndexedRecord{
		ContentID:   ContentID(w.platform, item.ExternalID),
		ContentType: w.contentType,
		Text:        item.CleanedText,
		Vector:      item.Vector,
		Metadata:    meta,
	}
}

// Index upserts every item that carries a vector. Items without one are
// counted as skipped. A failed batch counts its items as failed and the
// write continues; only when every batch fails is ErrStoreUnavailable returned.
func (w *Writer) Index(ctx context.Context, items []core.EmbeddedItem) (core.IndexStats, error) {
	var stats core.IndexStats

	// Repeated items collapse onto one record, the last occurrence winning.
	// weight counts the items each record stands for so stats still sum to
	// the input.
	records := make([]*core.IndexedRecord, 0, len(items))
	weight := make([]int, 0, len(items))
	seen := make(map[string]int, len(items))
	for i := range items {
		if !items[i].Success || len(items[i].Vector) == 0 {
			stats.Skipped++
			continue
		}
		record := w.Record(&items[i])
		key := record.ContentType + "\x00" + record.ContentID
		if j, ok := seen[key]; ok {
			records[j] = record
			weight[j]++
			continue
		}
		seen[key] = len(records)
		records = append(records, record)
		weight = append(weight, 1)
	}

	var errs []error
	batches := 0
	for start := 0; start < len(records); start += w.batchSize {
		if start > 0 && w.batchDelay > 0 {
			timer := time.NewTimer(w.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return stats, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+w.batchSize, len(records))
		batch := records[start:end]
		n := 0
		for _, c := range weight[start:end] {
			n += c
		}
		batches++

		if err := w.store.Upsert(ctx, batch...); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			w.logger.Error("failed to upsert batch", "start", start, "size", len(batch), "err", err)
			stats.Failed += n
			errs = append(errs, err)
			continue
		}
		stats.Indexed += n
	}

	if batches > 0 && len(errs) == batches {
		return stats, fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.Join(errs...))
	}

	w.logger.Info("indexed items", "indexed", stats.Indexed, "failed", stats.Failed, "skipped", stats.Skipped)
	return stats, nil
}

// SimilaritySearch returns records ordered by descending similarity. Results
// below opts.Threshold are dropped whatever the backend returns. A query whose
// dimension differs from the indexed vectors fails with
// storage.ErrDimensionMismatch.
func (w *Writer) SimilaritySearch(ctx context.Context, vector []float32, opts core.SearchOptions) ([]core.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidSearch)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidSearch)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Threshold < -1 || opts.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %.2f outside [-1, 1]", ErrInvalidSearch, opts.Threshold)
	}

	found, err := w.store.Query(ctx, vector, opts)
	if errors.Is(err, storage.ErrDimensionMismatch) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	results := make([]core.SearchResult, 0, len(found))
	for _, r := range found {
		if r.Similarity >= opts.Threshold {
			results = append(results, r)
		}
	}
	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
