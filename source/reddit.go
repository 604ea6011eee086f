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

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/pulse/core"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://www.reddit.com"
	DefaultUserAgent    = "pulse/1.0"
	DefaultTimeout      = 20 * time.Second
	DefaultRequestDelay = time.Second
)

// Reddit searches subreddits through the public JSON API.
type Reddit struct {
	client    *http.Client
	baseURL   string
	userAgent string
	token     string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ Source = (*Reddit)(nil)

// RedditOption configures a Reddit source.
type RedditOption func(*Reddit) error

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) RedditOption {
	return func(r *Reddit) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithBaseURL points the adapter at another host, e.g. a test server.
func WithBaseURL(base string) RedditOption {
	return func(r *Reddit) error {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: base url %q", ErrInvalidOption, base)
		}
		r.baseURL = strings.TrimSuffix(base, "/")
		return nil
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) RedditOption {
	return func(r *Reddit) error {
		if client != nil {
			r.client = client
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) RedditOption {
	return func(r *Reddit) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout %s", ErrInvalidOption, d)
		}
		r.client.Timeout = d
		return nil
	}
}

// WithRequestDelay sets the minimum gap between requests. Zero disables pacing.
func WithRequestDelay(d time.Duration) RedditOption {
	return func(r *Reddit) error {
		if d < 0 {
			return fmt.Errorf("%w: request delay %s", ErrInvalidOption, d)
		}
		r.limiter = newLimiter(d)
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) RedditOption {
	return func(r *Reddit) error {
		if ua != "" {
			r.userAgent = ua
		}
		return nil
	}
}

// WithBearerToken sends an OAuth bearer token with each request.
func WithBearerToken(token string) RedditOption {
	return func(r *Reddit) error {
		r.token = token
		return nil
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// NewReddit creates a Reddit source.
func NewReddit(opts ...RedditOption) (*Reddit, error) {
	r := &Reddit{
		client:    &http.Client{Timeout: DefaultTimeout},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		limiter:   newLimiter(DefaultRequestDelay),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "source", "platform", core.PlatformReddit)
	return r, nil
}

// Fetch runs one search per term and concatenates the results in term order.
// Posts matching several terms appear once per term. A failing term is logged
// and skipped; only when every term fails is an error returned.
func (r *Reddit) Fetch(ctx context.Context, q Query) ([]core.RawPost, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		posts []core.RawPost
		errs  []error
	)
	terms := q.terms()
	for _, term := range terms {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		found, err := r.search(ctx, q, term)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn("search term failed", "subreddit", q.Subreddit, "term", term, "err", err)
			errs = append(errs, fmt.Errorf("term %q: %w", term, err))
			continue
		}
		r.logger.Debug("fetched term", "subreddit", q.Subreddit, "term", term, "posts", len(found))
		posts = append(posts, found...)
	}

	if len(errs) == len(terms) {
		return nil, errors.Join(append([]error{ErrAllTermsFailed}, errs...)...)
	}
	return posts, nil
}

func (r *Reddit) searchURL(q Query, term string) string {
	params := url.Values{}
	params.Set("q", term)
	params.Set("restrict_sr", "1")
	params.Set("sort", q.sort())
	params.Set("limit", strconv.Itoa(q.limit()))
	params.Set("t", q.window())
	return fmt.Sprintf("%s/r/%s/search.json?%s", r.baseURL, url.PathEscape(q.Subreddit), params.Encode())
}

func (r *Reddit) search(ctx context.Context, q Query, term string) ([]core.RawPost, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.searchURL(q, term), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var listing listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	posts := make([]core.RawPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data.rawPost(term)
		if err := core.ValidateRawPost(&post); err != nil {
			r.logger.Debug("skipping post", "external_id", post.ExternalID, "err", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string   `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	Author       string  `json:"author"`
	Score        int     `json:"score"`
	NumComments  int     `json:"num_comments"`
	CreatedUTC   float64 `json:"created_utc"`
	Subreddit    string  `json:"subreddit"`
	Permalink    string  `json:"permalink"`
	URL          string  `json:"url"`
}

func (p redditPost) rawPost(term string) core.RawPost {
	body := p.Selftext
	if strings.TrimSpace(body) == "" && p.SelftextHTML != "" {
		body = htmlText(p.SelftextHTML)
	}
	sec, frac := math.Modf(p.CreatedUTC)
	return core.RawPost{
		ExternalID:   p.ID,
		Title:        p.Title,
		Body:         body,
		Author:       p.Author,
		Score:        p.Score,
		CommentCount: p.NumComments,
		CreatedAt:    time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		Subreddit:    p.Subreddit,
		SearchTerm:   term,
		Permalink:    p.Permalink,
		URL:          p.URL,
	}
}

// htmlText extracts the visible text of an entity-escaped HTML fragment, as
// Reddit delivers selftext_html.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(fragment)))
	if err != nil {
		return ""
	}
	doc.Find("br").ReplaceWithHtml("\n")
	var parts []string
	doc.Find("p, li, pre, blockquote, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, pre, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}
