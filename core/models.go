package core

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ID is a unique identifier for stored domain entities.
// It is generated using content-based hashing so that re-ingesting the same
// upstream post always lands on the same row.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// PlatformReddit is the only platform the bundled source adapter speaks to.
const PlatformReddit = "reddit"

// ContentTypePost tags vector index entries that were produced from posts.
const ContentTypePost = "reddit_post"

// RawPost is a post exactly as the upstream API returned it.
// It is immutable after fetch.
type RawPost struct {
	ExternalID   string
	Title        string
	Body         string
	Author       string
	Score        int
	CommentCount int
	CreatedAt    time.Time
	Subreddit    string
	SearchTerm   string // Term that matched this post
	Permalink    string
	URL          string
}

// Text returns the title and body joined the way the normalizer expects them.
func (p *RawPost) Text() string {
	if p.Body == "" {
		return p.Title
	}
	if p.Title == "" {
		return p.Body
	}
	return p.Title + "\n\n" + p.Body
}

// Keyword is a counted token extracted from cleaned text.
type Keyword struct {
	Word  string
	Count int
}

// Entities holds lexicon matches found in cleaned text.
type Entities struct {
	Products []string
	Features []string
	Emotions []string
	Numbers  []string
}

// TextFeatures are cheap structural signals about a post.
type TextFeatures struct {
	HasQuestion    bool
	HasExclamation bool
	Readability    float64 // Flesch reading ease, 0-100
}

// SentimentLabel buckets a sentiment score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Sentiment is a lexicon score in [-1, 1] plus its label.
type Sentiment struct {
	Score float64
	Label SentimentLabel
}

// ProcessedItem is a RawPost annotated by the normalizer.
// A non-empty Err marks a fallback record: the raw text was passed through
// and the annotation lists are empty.
type ProcessedItem struct {
	RawPost
	CleanedText string
	WordCount   int
	CharCount   int
	Keywords    []Keyword
	Entities    Entities
	Features    TextFeatures
	Sentiment   Sentiment
	Err         string
}

// Failed reports whether the item is a normalizer fallback.
func (p *ProcessedItem) Failed() bool {
	return p.Err != ""
}

// KeywordWords returns just the keyword strings in rank order.
func (p *ProcessedItem) KeywordWords() []string {
	words := make([]string, len(p.Keywords))
	for i, k := range p.Keywords {
		words[i] = k.Word
	}
	return words
}

// EmbeddedItem is a ProcessedItem plus the result of the embedding call.
// Failed items have a nil Vector and zero tokens and cost.
type EmbeddedItem struct {
	ProcessedItem
	Vector     []float32
	Model      string
	Tokens     int
	Cost       float64
	Success    bool
	EmbedError string
}

// IndexedRecord is a vector index entry. (ContentID, ContentType) is unique.
type IndexedRecord struct {
	ContentID   string
	ContentType string
	Text        string
	Vector      []float32
	Metadata    map[string]string
	UpdatedAt   time.Time
}

// SearchOptions bounds a similarity query.
type SearchOptions struct {
	Limit       int
	Threshold   float64
	ContentType string // Empty matches every type
}

// SearchResult is a single similarity hit.
type SearchResult struct {
	Record     *IndexedRecord
	Similarity float64
}

// IndexStats summarizes a vector index write.
type IndexStats struct {
	Indexed int
	Failed  int
	Skipped int
}

// Add accumulates other into s.
func (s *IndexStats) Add(other IndexStats) {
	s.Indexed += other.Indexed
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// PostRecord is the relational form of a processed post: the raw post row
// joined with its annotation row.
type PostRecord struct {
	Id          ID
	Platform    string
	ProductID   string
	Post        RawPost
	CleanedText string
	Keywords    []Keyword
	Entities    Entities
	Features    TextFeatures
	Sentiment   Sentiment
	InsertedAt  time.Time // When the record was first persisted
	UpdatedAt   time.Time // When the record was last upserted
}

// PostID computes the storage ID of a post on a platform.
func PostID(platform, externalID string) ID {
	return IDFromContent(platform + ":" + externalID)
}

// NewPostRecord builds the persisted form of a processed item.
func NewPostRecord(item *ProcessedItem, platform, productID string) *PostRecord {
	return &PostRecord{
		Id:          PostID(platform, item.ExternalID),
		Platform:    platform,
		ProductID:   productID,
		Post:        item.RawPost,
		CleanedText: item.CleanedText,
		Keywords:    item.Keywords,
		Entities:    item.Entities,
		Features:    item.Features,
		Sentiment:   item.Sentiment,
	}
}

// ProcessedItem rebuilds the normalizer output stored in the record.
func (r *PostRecord) ProcessedItem() ProcessedItem {
	return ProcessedItem{
		RawPost:     r.Post,
		CleanedText: r.CleanedText,
		WordCount:   len(splitWords(r.CleanedText)),
		CharCount:   len([]rune(r.CleanedText)),
		Keywords:    r.Keywords,
		Entities:    r.Entities,
		Features:    r.Features,
		Sentiment:   r.Sentiment,
	}
}

// PostFilter selects persisted posts. Zero values match everything.
type PostFilter struct {
	ProductID string
	Platform  string
	Since     time.Time
	Limit     int
}

// Matches reports whether a record passes the filter, ignoring Limit.
func (f PostFilter) Matches(r *PostRecord) bool {
	if f.ProductID != "" && r.ProductID != f.ProductID {
		return false
	}
	if f.Platform != "" && r.Platform != f.Platform {
		return false
	}
	if !f.Since.IsZero() && r.Post.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Checkpoint records how far a long-running batch job got.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	Processed     int
	UpdatedAt     time.Time
}
