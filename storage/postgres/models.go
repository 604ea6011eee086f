package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/pulse/core"
	"github.com/uptrace/bun"
)

// postRow is a raw post. IDs are stored as the signed reinterpretation of
// core.ID since PostgreSQL has no unsigned 64-bit type.
type postRow struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID           int64     `bun:"id,pk"`
	Platform     string    `bun:"platform,notnull"`
	ProductID    string    `bun:"product_id,notnull"`
	ExternalID   string    `bun:"external_id,notnull"`
	Title        string    `bun:"title"`
	Body         string    `bun:"body"`
	Author       string    `bun:"author"`
	Score        int       `bun:"score"`
	CommentCount int       `bun:"comment_count"`
	Subreddit    string    `bun:"subreddit"`
	SearchTerm   string    `bun:"search_term"`
	Permalink    string    `bun:"permalink"`
	URL          string    `bun:"url"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	InsertedAt   time.Time `bun:"inserted_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// annotationRow holds the normalizer output for a post.
type annotationRow struct {
	bun.BaseModel `bun:"table:post_annotations,alias:pa"`

	PostID         int64             `bun:"post_id,pk"`
	CleanedText    string            `bun:"cleaned_text"`
	Keywords       []core.Keyword    `bun:"keywords,type:jsonb"`
	Entities       core.Entities     `bun:"entities,type:jsonb"`
	Features       core.TextFeatures `bun:"features,type:jsonb"`
	SentimentScore float64           `bun:"sentiment_score"`
	SentimentLabel string            `bun:"sentiment_label"`
	UpdatedAt      time.Time         `bun:"updated_at,notnull"`
}

type insightRow struct {
	bun.BaseModel `bun:"table:insights,alias:i"`

	ID               uuid.UUID         `bun:"id,pk,type:uuid"`
	ProductID        string            `bun:"product_id,notnull"`
	Platform         string            `bun:"platform,notnull"`
	Timeframe        string            `bun:"timeframe,notnull"`
	Type             string            `bun:"type,notnull"`
	Keyword          string            `bun:"keyword,notnull"`
	Keywords         []string          `bun:"keywords,type:jsonb"`
	Title            string            `bun:"title"`
	Description      string            `bun:"description"`
	ContentCount     int               `bun:"content_count"`
	Confidence       float64           `bun:"confidence"`
	AverageSentiment float64           `bun:"average_sentiment"`
	Distribution     core.Distribution `bun:"distribution,type:jsonb"`
	GeneratedAt      time.Time         `bun:"generated_at,notnull"`
}

// embeddingRow is a vector index entry. The column is declared without a
// dimension so switching embedding models only needs a reindex.
type embeddingRow struct {
	bun.BaseModel `bun:"table:content_embeddings,alias:ce"`

	ContentID   string            `bun:"content_id,pk"`
	ContentType string            `bun:"content_type,pk"`
	Text        string            `bun:"text"`
	Embedding   pgvector.Vector   `bun:"embedding,type:vector"`
	Metadata    map[string]string `bun:"metadata,type:jsonb"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`
	Similarity  float64           `bun:"similarity,scanonly"`
}

func toPostRows(r *core.PostRecord) (postRow, annotationRow) {
	id := int64(r.Id)
	post := postRow{
		ID:           id,
		Platform:     r.Platform,
		ProductID:    r.ProductID,
		ExternalID:   r.Post.ExternalID,
		Title:        r.Post.Title,
		Body:         r.Post.Body,
		Author:       r.Post.Author,
		Score:        r.Post.Score,
		CommentCount: r.Post.CommentCount,
		Subreddit:    r.Post.Subreddit,
		SearchTerm:   r.Post.SearchTerm,
		Permalink:    r.Post.Permalink,
		URL:          r.Post.URL,
		CreatedAt:    r.Post.CreatedAt,
		InsertedAt:   r.InsertedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	ann := annotationRow{
		PostID:         id,
		CleanedText:    r.CleanedText,
		Keywords:       r.Keywords,
		Entities:       r.Entities,
		Features:       r.Features,
		SentimentScore: r.Sentiment.Score,
		SentimentLabel: string(r.Sentiment.Label),
		UpdatedAt:      r.UpdatedAt,
	}
	return post, ann
}

func fromPostRows(p *postRow, a *annotationRow) *core.PostRecord {
	r := &core.PostRecord{
		Id:        core.ID(uint64(p.ID)),
		Platform:  p.Platform,
		ProductID: p.ProductID,
		Post: core.RawPost{
			ExternalID:   p.ExternalID,
			Title:        p.Title,
			Body:         p.Body,
			Author:       p.Author,
			Score:        p.Score,
			CommentCount: p.CommentCount,
			CreatedAt:    p.CreatedAt,
			Subreddit:    p.Subreddit,
			SearchTerm:   p.SearchTerm,
			Permalink:    p.Permalink,
			URL:          p.URL,
		},
		InsertedAt: p.InsertedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if a != nil {
		r.CleanedText = a.CleanedText
		r.Keywords = a.Keywords
		r.Entities = a.Entities
		r.Features = a.Features
		r.Sentiment = core.Sentiment{Score: a.SentimentScore, Label: core.SentimentLabel(a.SentimentLabel)}
	}
	return r
}

func toInsightRow(in *core.Insight) insightRow {
	return insightRow{
		ID:               in.ID,
		ProductID:        in.ProductID,
		Platform:         in.Platform,
		Timeframe:        in.Timeframe,
		Type:             string(in.Type),
		Keyword:          in.Keyword,
		Keywords:         in.Keywords,
		Title:            in.Title,
		Description:      in.Description,
		ContentCount:     in.ContentCount,
		Confidence:       in.Confidence,
		AverageSentiment: in.AverageSentiment,
		Distribution:     in.Distribution,
		GeneratedAt:      in.GeneratedAt,
	}
}

func fromInsightRow(row *insightRow) *core.Insight {
	return &core.Insight{
		ID:               row.ID,
		ProductID:        row.ProductID,
		Platform:         row.Platform,
		Timeframe:        row.Timeframe,
		Type:             core.InsightType(row.Type),
		Keyword:          row.Keyword,
		Keywords:         row.Keywords,
		Title:            row.Title,
		Description:      row.Description,
		ContentCount:     row.ContentCount,
		Confidence:       row.Confidence,
		AverageSentiment: row.AverageSentiment,
		Distribution:     row.Distribution,
		GeneratedAt:      row.GeneratedAt,
	}
}
