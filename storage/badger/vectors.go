package badger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/storage"
)

// VectorStore implements storage.VectorStore on BadgerDB with an exhaustive
// cosine scan. It suits tens of thousands of records; larger corpora belong
// in chromem or pgvector.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}

// Upsert stores records under (content type, content id).
func (s *VectorStore) Upsert(ctx context.Context, records ...*core.IndexedRecord) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			if err := core.ValidateIndexedRecord(record); err != nil {
				return err
			}
			record.UpdatedAt = now
			value, err := storage.MarshalIndexedRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeVectorKey(record.ContentType, record.ContentID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Query scans every record of the requested type and ranks them by cosine
// similarity. A stored record whose dimension differs from vector fails the
// query with storage.ErrDimensionMismatch.
func (s *VectorStore) Query(ctx context.Context, vector []float32, opts core.SearchOptions) ([]core.SearchResult, error) {
	if len(vector) == 0 || opts.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	prefix := []byte(vectorPrefix)
	if opts.ContentType != "" {
		prefix = makeVectorTypePrefix(opts.ContentType)
	}

	var results []core.SearchResult
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.IndexedRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalIndexedRecord(val)
				return err
			}); err != nil {
				return err
			}

			if len(record.Vector) != len(vector) {
				return fmt.Errorf("%w: query has %d dimensions, %s has %d",
					storage.ErrDimensionMismatch, len(vector), record.ContentID, len(record.Vector))
			}
			similarity, err := embed.CosineSimilarity(vector, record.Vector)
			if err != nil {
				s.backend.logger.Debug("skipping record", "content_id", record.ContentID, "err", err)
				continue
			}
			if similarity < opts.Threshold {
				continue
			}
			results = append(results, core.SearchResult{Record: record, Similarity: similarity})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		n = countPrefix(tx, []byte(vectorPrefix))
		return nil
	}, false)
	return n, err
}
