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

// Package chromem implements storage.VectorStore on a chromem-go collection.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "pulse_content"

const (
	metaContentID   = "content_id"
	metaContentType = "content_type"
	metaUpdatedAt   = "updated_at"
)

// ErrEmbeddingRequired is returned if chromem is asked to embed text itself.
// Records always arrive with vectors computed by the embed package.
var ErrEmbeddingRequired = errors.New("chromem store requires precomputed embeddings")

// Store implements storage.VectorStore on a chromem-go collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	compress   bool
	name       string
	logger     *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithPath persists the database under path. Without it the store is in-memory.
func WithPath(path string, compress bool) Option {
	return func(s *Store) error {
		s.path = path
		s.compress = compress
		return nil
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return fmt.Errorf("%w: empty collection name", storage.ErrInvalidQuery)
		}
		s.name = name
		return nil
	}
}

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New opens (or creates) the collection.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		name:   DefaultCollection,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "chromem", "collection", s.name)

	if s.path == "" {
		s.db = chromem.NewDB()
	} else {
		db, err := chromem.NewPersistentDB(s.path, s.compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
		s.db = db
	}

	collection, err := s.db.GetOrCreateCollection(s.name, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	s.collection = collection
	return s, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingRequired
}

// documentID keys documents by content type and id so types never collide.
func documentID(contentType, contentID string) string {
	return contentType + ":" + contentID
}

// Upsert adds records; chromem replaces documents with an existing ID.
func (s *Store) Upsert(ctx context.Context, records ...*core.IndexedRecord) error {
	now := time.Now().UTC()
	for _, record := range records {
		if err := core.ValidateIndexedRecord(record); err != nil {
			return err
		}
		record.UpdatedAt = now

		meta := make(map[string]string, len(record.Metadata)+3)
		for k, v := range record.Metadata {
			meta[k] = v
		}
		meta[metaContentID] = record.ContentID
		meta[metaContentType] = record.ContentType
		meta[metaUpdatedAt] = now.Format(time.RFC3339Nano)

		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:        documentID(record.ContentType, record.ContentID),
			Content:   record.Text,
			Metadata:  meta,
			Embedding: record.Vector,
		})
		if err != nil {
			return fmt.Errorf("failed to add document %s: %w", record.ContentID, err)
		}
	}
	return nil
}

// Query runs chromem's exhaustive cosine search. The result count is clamped
// to the collection size and the threshold is applied afterwards.
func (s *Store) Query(ctx context.Context, vector []float32, opts core.SearchOptions) ([]core.SearchResult, error) {
	if len(vector) == 0 || opts.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	n := min(opts.Limit, s.collection.Count())
	if n == 0 {
		return nil, nil
	}

	var where map[string]string
	if opts.ContentType != "" {
		where = map[string]string{metaContentType: opts.ContentType}
	}

	found, err := s.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		if strings.Contains(err.Error(), "must have the same length") {
			return nil, fmt.Errorf("%w: %v", storage.ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]core.SearchResult, 0, len(found))
	for _, r := range found {
		similarity := float64(r.Similarity)
		if similarity < opts.Threshold {
			continue
		}
		results = append(results, core.SearchResult{
			Record:     toRecord(r),
			Similarity: similarity,
		})
	}
	return results, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close is a no-op; persistent stores write through on every upsert.
func (s *Store) Close() error {
	return nil
}

func toRecord(r chromem.Result) *core.IndexedRecord {
	record := &core.IndexedRecord{
		ContentID:   r.Metadata[metaContentID],
		ContentType: r.Metadata[metaContentType],
		Text:        r.Content,
		Vector:      r.Embedding,
		Metadata:    make(map[string]string, len(r.Metadata)),
	}
	for k, v := range r.Metadata {
		switch k {
		case metaContentID, metaContentType:
		case metaUpdatedAt:
			record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
		default:
			record.Metadata[k] = v
		}
	}
	return record
}
