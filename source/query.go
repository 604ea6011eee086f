package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/pulse/core"
)

// Source fetches raw posts matching a query.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]core.RawPost, error)
}

// Time windows accepted by Query.
const (
	WindowHour  = "hour"
	WindowDay   = "day"
	WindowWeek  = "week"
	WindowMonth = "month"
	WindowYear  = "year"
	WindowAll   = "all"
)

// Sort orders accepted by Query.
const (
	SortRelevance = "relevance"
	SortHot       = "hot"
	SortTop       = "top"
	SortNew       = "new"
	SortComments  = "comments"
)

const (
	// DefaultLimit is used when Query.Limit is zero.
	DefaultLimit = 25
	// MaxLimit is the largest page the search endpoint serves.
	MaxLimit = 100
)

// Query selects posts from one subreddit. Each term is searched separately.
type Query struct {
	Subreddit  string
	Terms      []string
	Limit      int    // Per term
	TimeWindow string // Defaults to WindowWeek
	Sort       string // Defaults to SortNew
}

// Validate checks the query and reports the first problem found.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Subreddit) == "" {
		return fmt.Errorf("%w: subreddit is empty", ErrInvalidQuery)
	}
	if len(q.terms()) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrNoTerms)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	switch q.TimeWindow {
	case "", WindowHour, WindowDay, WindowWeek, WindowMonth, WindowYear, WindowAll:
	default:
		return fmt.Errorf("%w: unknown time window %q", ErrInvalidQuery, q.TimeWindow)
	}
	switch q.Sort {
	case "", SortRelevance, SortHot, SortTop, SortNew, SortComments:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, q.Sort)
	}
	return nil
}

// terms returns the non-blank terms, trimmed.
func (q Query) terms() []string {
	out := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (q Query) limit() int {
	if q.Limit == 0 {
		return DefaultLimit
	}
	return min(q.Limit, MaxLimit)
}

func (q Query) window() string {
	if q.TimeWindow == "" {
		return WindowWeek
	}
	return q.TimeWindow
}

func (q Query) sort() string {
	if q.Sort == "" {
		return SortNew
	}
	return q.Sort
}
