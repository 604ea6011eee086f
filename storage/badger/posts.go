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

package badger

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

// PostRepository implements storage.PostRepository for BadgerDB.
// Posts are stored under their ID with a secondary index on creation time.
type PostRepository struct {
	backend *Backend
}

var _ storage.PostRepository = (*PostRepository)(nil)

// NewPostRepository creates a new PostRepository.
func NewPostRepository(backend *Backend) *PostRepository {
	return &PostRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *PostRepository) Close() error {
	return nil
}

// UpsertPosts inserts or replaces posts.
func (r *PostRepository) UpsertPosts(ctx context.Context, records ...*core.PostRecord) ([]*core.PostRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			key := makePostKey(record.Id)

			old, err := get(tx, key, storage.UnmarshalPostRecord)
			if err != nil {
				return err
			}

			record.UpdatedAt = now
			if old != nil {
				record.InsertedAt = old.InsertedAt
				if !old.Post.CreatedAt.Equal(record.Post.CreatedAt) {
					if err := tx.Delete(makePostDateKey(old.Post.CreatedAt, old.Id)); err != nil {
						return err
					}
				}
			} else if record.InsertedAt.IsZero() {
				record.InsertedAt = now
			}

			value, err := storage.MarshalPostRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}

			dateKey := makePostDateKey(record.Post.CreatedAt, record.Id)
			if err := tx.Set(dateKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetPost retrieves a single post by ID.
func (r *PostRepository) GetPost(ctx context.Context, id core.ID) (*core.PostRecord, error) {
	var result *core.PostRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = get(tx, makePostKey(id), storage.UnmarshalPostRecord)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListPosts walks the date index from filter.Since and returns matching posts,
// oldest first.
func (r *PostRepository) ListPosts(ctx context.Context, filter core.PostFilter) ([]*core.PostRecord, error) {
	if filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.PostRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(postDatePrefix)
		start := prefix
		if !filter.Since.IsZero() {
			start = makePartialPostDateKey(filter.Since)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(start); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			record, err := get(tx, makePostKey(id), storage.UnmarshalPostRecord)
			if err != nil {
				return err
			}
			if record == nil || !filter.Matches(record) {
				continue
			}
			results = append(results, record)
			if filter.Limit > 0 && len(results) >= filter.Limit {
				break
			}
		}
		return nil
	}, false)

	return results, err
}

// countPrefix counts keys under prefix without reading values.
func countPrefix(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	n := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if bytes.HasPrefix(iter.Item().Key(), prefix) {
			n++
		}
	}
	return n
}
