package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/pulse/core"
)

// File replays posts from a JSON array or JSON-lines dump. Posts are matched
// by subreddit and by a case-insensitive substring of their title or body.
// The time window and sort of the query are ignored.
type File struct {
	path   string
	logger *slog.Logger
}

var _ Source = (*File)(nil)

// NewFile creates a File source. The file is read on every Fetch.
func NewFile(path string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger.With("component", "source", "file", path)}
}

// Fetch returns up to q.Limit matching posts per term, in file order.
func (f *File) Fetch(ctx context.Context, q Query) ([]core.RawPost, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer fh.Close()

	all, err := ReadPosts(fh)
	if err != nil {
		return nil, err
	}

	var out []core.RawPost
	for _, term := range q.terms() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		needle := strings.ToLower(term)
		matched := 0
		for _, p := range all {
			if matched == q.limit() {
				break
			}
			if !strings.EqualFold(p.Subreddit, q.Subreddit) {
				continue
			}
			if !strings.Contains(strings.ToLower(p.Title), needle) && !strings.Contains(strings.ToLower(p.Body), needle) {
				continue
			}
			p.SearchTerm = term
			out = append(out, p)
			matched++
		}
	}
	f.logger.Debug("replayed posts", "subreddit", q.Subreddit, "posts", len(out))
	return out, nil
}

// filePost is the on-disk shape of a post.
type filePost struct {
	ExternalID   string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	Subreddit    string    `json:"subreddit"`
	Permalink    string    `json:"permalink,omitempty"`
	URL          string    `json:"url,omitempty"`
}

func (p filePost) rawPost() core.RawPost {
	return core.RawPost{
		ExternalID:   p.ExternalID,
		Title:        p.Title,
		Body:         p.Body,
		Author:       p.Author,
		Score:        p.Score,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		Subreddit:    p.Subreddit,
		Permalink:    p.Permalink,
		URL:          p.URL,
	}
}

// ReadPosts decodes a JSON array or JSON-lines stream of posts.
func ReadPosts(r io.Reader) ([]core.RawPost, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	var decoded []filePost
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode dump: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var p filePost
			if err := json.Unmarshal(text, &p); err != nil {
				return nil, fmt.Errorf("decode dump line %d: %w", line, err)
			}
			decoded = append(decoded, p)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read dump: %w", err)
		}
	}

	posts := make([]core.RawPost, len(decoded))
	for i, p := range decoded {
		posts[i] = p.rawPost()
	}
	return posts, nil
}

// WritePosts encodes posts as JSON lines, the format ReadPosts accepts.
func WritePosts(w io.Writer, posts []core.RawPost) error {
	enc := json.NewEncoder(w)
	for _, p := range posts {
		if err := enc.Encode(filePost{
			ExternalID:   p.ExternalID,
			Title:        p.Title,
			Body:         p.Body,
			Author:       p.Author,
			Score:        p.Score,
			CommentCount: p.CommentCount,
			CreatedAt:    p.CreatedAt,
			Subreddit:    p.Subreddit,
			Permalink:    p.Permalink,
			URL:          p.URL,
		}); err != nil {
			return fmt.Errorf("encode post %s: %w", p.ExternalID, err)
		}
	}
	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return b, br.UnreadByte()
	}
}
