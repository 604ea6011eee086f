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

package reindex

import (
	"context"
	"fmt"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

// DefaultBatchSize is the number of posts handed to each callback.
const DefaultBatchSize = 100

// PostIterator walks persisted posts oldest first, in batches.
type PostIterator struct {
	repo      storage.PostRepository
	filter    core.PostFilter
	batchSize int
}

// NewPostIterator creates an iterator over the posts matching filter.
func NewPostIterator(repo storage.PostRepository, filter core.PostFilter, batchSize int) *PostIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	filter.Limit = 0
	return &PostIterator{repo: repo, filter: filter, batchSize: batchSize}
}

// Count returns the number of posts the iterator will visit.
func (it *PostIterator) Count(ctx context.Context) (int, error) {
	posts, err := it.repo.ListPosts(ctx, it.filter)
	if err != nil {
		return 0, fmt.Errorf("failed to list posts: %w", err)
	}
	return len(posts), nil
}

// ForEach calls fn for each batch, skipping the first offset posts.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *PostIterator) ForEach(ctx context.Context, offset int, fn func([]*core.PostRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	posts, err := it.repo.ListPosts(ctx, it.filter)
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}
	if offset >= len(posts) {
		return nil
	}
	posts = posts[max(offset, 0):]

	for start := 0; start < len(posts); start += it.batchSize {
		end := min(start+it.batchSize, len(posts))
		if err := fn(posts[start:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
