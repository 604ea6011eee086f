package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/storage"
)

// Hit is a search result joined with its persisted post, when available.
type Hit struct {
	core.SearchResult
	Post     *core.PostRecord
	Verbatim bool // Every content word of the query appears in the text
}

// Searcher embeds queries and runs them against the vector index.
type Searcher struct {
	generator *embed.Generator
	writer    *index.Writer
	posts     storage.PostRepository
	lexicon   *normalize.Lexicon
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPosts lets Search attach the persisted post to each hit.
func WithPosts(posts storage.PostRepository) Option {
	return func(s *Searcher) error {
		s.posts = posts
		return nil
	}
}

// WithLexicon sets the word lists used to decide verbatim hits. Pass the
// normalizer's lexicon so queries and posts agree on stopwords.
// Default is normalize.DefaultLexicon().
func WithLexicon(lexicon *normalize.Lexicon) Option {
	return func(s *Searcher) error {
		if lexicon == nil {
			return normalize.ErrLexiconRequired
		}
		s.lexicon = lexicon
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(generator *embed.Generator, writer *index.Writer, opts ...Option) (*Searcher, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	s := &Searcher{
		generator: generator,
		writer:    writer,
		lexicon:   normalize.DefaultLexicon(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	return s, nil
}

// SearchByText embeds text and returns the most similar indexed records.
// Errors from the embedding service or the store are returned unchanged.
func (s *Searcher) SearchByText(ctx context.Context, text string, opts core.SearchOptions) ([]core.SearchResult, error) {
	return s.searchByText(ctx, text, opts, &noopMonitor{})
}

func (s *Searcher) searchByText(ctx context.Context, text string, opts core.SearchOptions, monitor SearchMonitor) ([]core.SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := s.generator.EmbedQuery(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vector)

	results, err := s.writer.SimilaritySearch(ctx, vector, opts)
	if err != nil {
		s.logger.Error("error querying for similar records", "err", err)
		return nil, err
	}
	monitor.AfterQuery(results)
	return results, nil
}

// Search runs SearchByText and joins each result with its persisted post.
// Hits whose post cannot be found keep a nil Post.
func (s *Searcher) Search(ctx context.Context, text string, opts core.SearchOptions) ([]Hit, error) {
	return s.SearchWithMonitor(ctx, text, opts, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, text string, opts core.SearchOptions, monitor SearchMonitor) ([]Hit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(text)

	results, err := s.searchByText(ctx, text, opts, monitor)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			SearchResult: r,
			Verbatim:     verbatim(s.lexicon, r.Record.Text, text),
		}
		if s.posts == nil {
			continue
		}
		id, err := index.ParseContentID(r.Record.ContentID)
		if err != nil {
			continue
		}
		post, err := s.posts.GetPost(ctx, id)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("failed to load post for hit", "content_id", r.Record.ContentID, "err", err)
			}
			continue
		}
		hits[i].Post = post
	}

	monitor.Finish(hits)
	return hits, nil
}
