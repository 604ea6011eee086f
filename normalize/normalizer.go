package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/poiesic/pulse/core"
)

const (
	// DefaultBatchSize is used when CleanBatch is called with a non-positive size.
	DefaultBatchSize = 50

	// DefaultBatchDelay separates batches in CleanBatch.
	DefaultBatchDelay = 100 * time.Millisecond
)

// Normalizer turns raw posts into annotated ProcessedItems.
// It is safe for concurrent use once constructed.
type Normalizer struct {
	lexicon    *Lexicon
	batchDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		n.logger = logger
		return nil
	}
}

// WithLexicon replaces the built-in word lists.
func WithLexicon(lexicon *Lexicon) Option {
	return func(n *Normalizer) error {
		if lexicon == nil {
			return ErrLexiconRequired
		}
		n.lexicon = lexicon
		return nil
	}
}

// WithBatchDelay sets the pause between CleanBatch batches.
func WithBatchDelay(d time.Duration) Option {
	return func(n *Normalizer) error {
		if d < 0 {
			d = 0
		}
		n.batchDelay = d
		return nil
	}
}

// NewNormalizer creates a normalizer with the default lexicon.
func NewNormalizer(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		lexicon:    DefaultLexicon(),
		batchDelay: DefaultBatchDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	n.logger = n.logger.With("component", "normalizer")
	return n, nil
}

// Lexicon returns the word lists the normalizer matches against.
func (n *Normalizer) Lexicon() *Lexicon {
	return n.lexicon
}

// Clean annotates a single post. It never fails: posts that cannot be
// cleaned come back as fallback items carrying the raw text and an error marker.
func (n *Normalizer) Clean(raw core.RawPost) (item core.ProcessedItem) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("cleaning panicked, emitting fallback", "external_id", raw.ExternalID, "panic", r)
			item = fallback(raw, fmt.Errorf("%w: %v", ErrCleanFailed, r))
		}
	}()

	if err := core.ValidateRawPost(&raw); err != nil {
		n.logger.Debug("invalid post, emitting fallback", "external_id", raw.ExternalID, "err", err)
		return fallback(raw, err)
	}

	cleaned := CleanText(raw.Text())
	if cleaned == "" {
		return fallback(raw, ErrNothingLeft)
	}

	return core.ProcessedItem{
		RawPost:     raw,
		CleanedText: cleaned,
		WordCount:   len(words(cleaned)),
		CharCount:   utf8.RuneCountInString(cleaned),
		Keywords:    n.ExtractKeywords(cleaned),
		Entities:    n.ExtractEntities(cleaned),
		Features:    Features(cleaned),
		Sentiment:   n.ScoreSentiment(cleaned),
	}
}

// CleanBatch cleans posts in batches of batchSize with a pause between
// batches. The output has exactly one item per input, in input order.
// The only error is context cancellation.
func (n *Normalizer) CleanBatch(ctx context.Context, raws []core.RawPost, batchSize int) ([]core.ProcessedItem, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([]core.ProcessedItem, len(raws))
	fallbacks := 0
	for start := 0; start < len(raws); start += batchSize {
		if start > 0 && n.batchDelay > 0 {
			timer := time.NewTimer(n.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+batchSize, len(raws))
		for i := start; i < end; i++ {
			out[i] = n.Clean(raws[i])
			if out[i].Failed() {
				fallbacks++
			}
		}
	}

	n.logger.Debug("cleaned batch", "count", len(out), "fallbacks", fallbacks)
	return out, nil
}

func fallback(raw core.RawPost, err error) core.ProcessedItem {
	text := raw.Text()
	return core.ProcessedItem{
		RawPost:     raw,
		CleanedText: text,
		WordCount:   len(words(text)),
		CharCount:   utf8.RuneCountInString(text),
		Keywords:    []core.Keyword{},
		Entities:    core.Entities{Products: []string{}, Features: []string{}, Emotions: []string{}, Numbers: []string{}},
		Sentiment:   core.Sentiment{Label: core.SentimentNeutral},
		Err:         err.Error(),
	}
}
