package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ValidateRawPost validates a RawPost according to domain rules.
//
// Validation rules:
//   - ExternalID must not be empty
//   - Title or Body must contain text
//   - CreatedAt must not be in the future
func ValidateRawPost(post *RawPost) error {
	if post == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidPost)
	}

	if strings.TrimSpace(post.ExternalID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrMissingExternalID)
	}

	if strings.TrimSpace(post.Title) == "" && strings.TrimSpace(post.Body) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrEmptyContent)
	}

	if !IsValidTimestamp(post.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateIndexedRecord validates an IndexedRecord before it is written to a vector store.
func ValidateIndexedRecord(record *IndexedRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.ContentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingContentID)
	}
	if record.ContentType == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingContentType)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyVector)
	}
	return nil
}

// ValidateInsight validates an Insight before it is persisted.
//
// Validation rules:
//   - Type must be one of the known insight types
//   - ContentCount must be at least MinInsightPosts
//   - Confidence must be within [0, 1]
func ValidateInsight(insight *Insight) error {
	if insight == nil {
		return fmt.Errorf("%w: insight is nil", ErrInvalidInsight)
	}
	if !insight.Type.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidInsight, ErrInvalidInsightType, insight.Type)
	}
	if insight.ContentCount < MinInsightPosts {
		return fmt.Errorf("%w: content count %d below minimum %d", ErrInvalidInsight, insight.ContentCount, MinInsightPosts)
	}
	if insight.Confidence < 0 || insight.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidInsight, insight.Confidence)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// A small clock skew is tolerated since upstream timestamps come from another host.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(5 * time.Minute))
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, unicode.IsSpace)
}
