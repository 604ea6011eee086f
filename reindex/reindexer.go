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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/storage"
)

// CheckpointType identifies reindex checkpoints in the checkpoint store.
// Runs restricted to one product use CheckpointKey instead.
const CheckpointType = "reindex"

// CheckpointKey returns the checkpoint type for a reindex of productID, or of
// every product when productID is empty. Each scope resumes independently.
func CheckpointKey(productID string) string {
	if productID == "" {
		return CheckpointType
	}
	return CheckpointType + ":" + productID
}

// Config holds configuration for a reindex.
type Config struct {
	// BatchSize is the number of posts embedded and indexed together.
	BatchSize int

	// ReportInterval is how often to report progress, in posts.
	ReportInterval int

	// ProductID restricts the reindex to one product. Empty means every post.
	ProductID string

	// Resume continues from the last checkpoint instead of starting over.
	Resume bool
}

// DefaultConfig returns a Config with the default batch size and interval.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
	}
}

// Result summarizes a reindex.
type Result struct {
	Posts    int // Posts visited in this run
	Resumed  int // Posts skipped because a checkpoint covered them
	Embedded int
	Stats    core.IndexStats
	Elapsed  time.Duration
}

// Reindexer re-embeds persisted posts into the vector index.
type Reindexer struct {
	posts       storage.PostRepository
	generator   *embed.Generator
	writer      *index.Writer
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithCheckpoints saves progress after each batch so Config.Resume can pick it up.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(r *Reindexer) error {
		r.checkpoints = repo
		return nil
	}
}

// NewReindexer creates a reindexer. progress receives human-readable
// progress output and may be nil.
func NewReindexer(
	posts storage.PostRepository,
	generator *embed.Generator,
	writer *index.Writer,
	config *Config,
	progress io.Writer,
	opts ...Option,
) (*Reindexer, error) {
	switch {
	case posts == nil:
		return nil, ErrPostRepositoryRequired
	case generator == nil:
		return nil, ErrGeneratorRequired
	case writer == nil:
		return nil, ErrWriterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reindexer{
		posts:     posts,
		generator: generator,
		writer:    writer,
		config:    config,
		progress:  progress,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reindex")
	return r, nil
}

// Run re-embeds every matching post and upserts it into the vector index.
// Embedding service outages and index write failures abort the run; with
// checkpoints enabled the completed batches are not redone on resume.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	iterator := NewPostIterator(r.posts, core.PostFilter{ProductID: r.config.ProductID}, r.config.BatchSize)

	total, err := iterator.Count(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{}
	if total == 0 {
		fmt.Fprintf(r.progress, "No posts found (0 posts)\n")
		return result, nil
	}

	offset, err := r.resumeOffset(ctx)
	if err != nil {
		return nil, err
	}
	result.Resumed = min(offset, total)

	fmt.Fprintf(r.progress, "Reindexing %d posts with %s (batch size: %d)\n", total-result.Resumed, r.generator.Model(), r.config.BatchSize)
	tracker := NewProgressTracker(r.progress, "posts", total, r.config.ReportInterval)
	tracker.Start(result.Resumed)

	err = iterator.ForEach(ctx, offset, func(batch []*core.PostRecord) error {
		items := make([]core.ProcessedItem, len(batch))
		for i, rec := range batch {
			items[i] = rec.ProcessedItem()
		}

		embedded, err := r.generator.Embed(ctx, items)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
		for i := range embedded {
			if embedded[i].Success {
				result.Embedded++
			}
		}

		stats, err := r.writer.Index(ctx, embedded)
		result.Stats.Add(stats)
		if err != nil {
			return fmt.Errorf("failed to index batch: %w", err)
		}

		result.Posts += len(batch)
		tracker.Increment(len(batch))
		return r.saveCheckpoint(ctx, batch[len(batch)-1].Id, tracker.Current())
	})
	tracker.Finish()
	result.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reindex aborted", "posts", result.Posts, "err", err)
		return result, err
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.ClearCheckpoint(ctx, r.checkpointKey()); err != nil {
			return result, fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	fmt.Fprintf(r.progress, "Reindex complete. Indexed %d of %d posts in %v\n",
		result.Stats.Indexed, result.Posts, result.Elapsed.Round(time.Millisecond))
	r.logger.Info("reindex complete", "posts", result.Posts, "indexed", result.Stats.Indexed,
		"failed", result.Stats.Failed, "skipped", result.Stats.Skipped)
	return result, nil
}

func (r *Reindexer) checkpointKey() string {
	return CheckpointKey(r.config.ProductID)
}

func (r *Reindexer) resumeOffset(ctx context.Context) (int, error) {
	if r.checkpoints == nil {
		return 0, nil
	}
	if !r.config.Resume {
		if err := r.checkpoints.ClearCheckpoint(ctx, r.checkpointKey()); err != nil {
			return 0, fmt.Errorf("failed to clear checkpoint: %w", err)
		}
		return 0, nil
	}
	cp, err := r.checkpoints.LoadCheckpoint(ctx, r.checkpointKey())
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return 0, nil
	}
	r.logger.Info("resuming reindex", "processed", cp.Processed, "last_id", cp.LastID)
	return cp.Processed, nil
}

func (r *Reindexer) saveCheckpoint(ctx context.Context, lastID core.ID, processed int) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: r.checkpointKey(),
		LastID:        lastID,
		Processed:     processed,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
