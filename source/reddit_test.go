package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingJSON(t *testing.T, posts ...map[string]any) []byte {
	t.Helper()
	children := make([]map[string]any, len(posts))
	for i, p := range posts {
		children[i] = map[string]any{"kind": "t3", "data": p}
	}
	b, err := json.Marshal(map[string]any{"kind": "Listing", "data": map[string]any{"children": children}})
	require.NoError(t, err)
	return b
}

func redditPostJSON(id, title, body string) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        title,
		"selftext":     body,
		"author":       "someone",
		"score":        12,
		"num_comments": 3,
		"created_utc":  1700000000.0,
		"subreddit":    "whoop",
		"permalink":    "/r/whoop/comments/" + id,
		"url":          "https://reddit.com/r/whoop/comments/" + id,
	}
}

func newTestReddit(t *testing.T, handler http.HandlerFunc, opts ...RedditOption) *Reddit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	base := []RedditOption{WithBaseURL(srv.URL), WithRequestDelay(0)}
	r, err := NewReddit(append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func TestQuery_Validate(t *testing.T) {
	valid := Query{Subreddit: "whoop", Terms: []string{"battery"}}
	assert.NoError(t, valid.Validate())

	for name, q := range map[string]Query{
		"empty subreddit": {Terms: []string{"battery"}},
		"no terms":        {Subreddit: "whoop"},
		"blank terms":     {Subreddit: "whoop", Terms: []string{" ", ""}},
		"bad window":      {Subreddit: "whoop", Terms: []string{"x"}, TimeWindow: "decade"},
		"bad sort":        {Subreddit: "whoop", Terms: []string{"x"}, Sort: "random"},
		"negative limit":  {Subreddit: "whoop", Terms: []string{"x"}, Limit: -1},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, q.Validate(), ErrInvalidQuery)
		})
	}
	assert.ErrorIs(t, Query{Subreddit: "whoop"}.Validate(), ErrNoTerms)
}

func TestReddit_FetchBuildsRequests(t *testing.T) {
	var seen []string
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/r/whoop/search.json", req.URL.Path)
		q := req.URL.Query()
		assert.Equal(t, "1", q.Get("restrict_sr"))
		assert.Equal(t, "top", q.Get("sort"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "month", q.Get("t"))
		assert.Equal(t, "pulse-test", req.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		seen = append(seen, q.Get("q"))
		w.Write(listingJSON(t, redditPostJSON("id-"+q.Get("q"), "About "+q.Get("q"), "body text")))
	}, WithUserAgent("pulse-test"), WithBearerToken("secret"))

	posts, err := r.Fetch(context.Background(), Query{
		Subreddit:  "whoop",
		Terms:      []string{"battery", "strap"},
		Limit:      500,
		TimeWindow: WindowMonth,
		Sort:       SortTop,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"battery", "strap"}, seen)
	require.Len(t, posts, 2)

	assert.Equal(t, "id-battery", posts[0].ExternalID)
	assert.Equal(t, "battery", posts[0].SearchTerm)
	assert.Equal(t, "body text", posts[0].Body)
	assert.Equal(t, 3, posts[0].CommentCount)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), posts[0].CreatedAt)
	assert.Equal(t, "strap", posts[1].SearchTerm)
}

func TestReddit_NoDeduplicationAcrossTerms(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write(listingJSON(t, redditPostJSON("same", "battery strap", "")))
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"battery", "strap"}})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, posts[0].ExternalID, posts[1].ExternalID)
}

func TestReddit_PartialFailure(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("q") == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(listingJSON(t, redditPostJSON("ok", "works", "fine")))
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"broken", "working"}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "working", posts[0].SearchTerm)
}

func TestReddit_AllTermsFail(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"a", "b"}})
	assert.Nil(t, posts)
	assert.ErrorIs(t, err, ErrAllTermsFailed)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.ErrorContains(t, err, `term "b"`)
}

func TestReddit_EmptyResultIsNotFailure(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write(listingJSON(t))
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"nothing"}})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestReddit_SkipsInvalidPosts(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write(listingJSON(t,
			redditPostJSON("", "no id", "body"),
			redditPostJSON("blank", "", ""),
			redditPostJSON("good", "title", ""),
		))
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "good", posts[0].ExternalID)
}

func TestReddit_BodyFromSelftextHTML(t *testing.T) {
	post := redditPostJSON("h1", "html post", "")
	post["selftext_html"] = "&lt;!-- SC_OFF --&gt;&lt;div class=\"md\"&gt;&lt;p&gt;Battery &amp;amp; sleep&lt;/p&gt;&lt;ul&gt;&lt;li&gt;first&lt;/li&gt;&lt;/ul&gt;&lt;/div&gt;"
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write(listingJSON(t, post))
	})

	posts, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"x"}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Battery & sleep\n\nfirst", posts[0].Body)
}

func TestReddit_PacesRequests(t *testing.T) {
	var calls atomic.Int32
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.Write(listingJSON(t))
	}, WithRequestDelay(50*time.Millisecond))

	start := time.Now()
	_, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestReddit_Timeout(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := r.Fetch(context.Background(), Query{Subreddit: "whoop", Terms: []string{"slow"}})
	assert.ErrorIs(t, err, ErrAllTermsFailed)
}

func TestReddit_Canceled(t *testing.T) {
	r := newTestReddit(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write(listingJSON(t))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Fetch(ctx, Query{Subreddit: "whoop", Terms: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReddit_InvalidOptions(t *testing.T) {
	_, err := NewReddit(WithBaseURL("not a url"))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewReddit(WithTimeout(0))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewReddit(WithRequestDelay(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidOption)
}
