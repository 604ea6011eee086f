package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
	"github.com/uptrace/bun"
)

// PostRepository implements storage.PostRepository with a posts table and a
// post_annotations table written in one transaction.
type PostRepository struct {
	db *bun.DB
}

var _ storage.PostRepository = (*PostRepository)(nil)

// NewPostRepository creates a PostRepository.
func NewPostRepository(db *bun.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Close closes the underlying connection pool.
func (r *PostRepository) Close() error {
	return r.db.Close()
}

// UpsertPosts writes posts and annotations. Existing rows keep their stored
// inserted_at; the returned records carry the time of this call.
func (r *PostRepository) UpsertPosts(ctx context.Context, records ...*core.PostRecord) ([]*core.PostRecord, error) {
	if len(records) == 0 {
		return records, nil
	}

	now := time.Now().UTC()
	posts := make([]postRow, len(records))
	anns := make([]annotationRow, len(records))
	for i, record := range records {
		if record.InsertedAt.IsZero() {
			record.InsertedAt = now
		}
		record.UpdatedAt = now
		posts[i], anns[i] = toPostRows(record)
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(&posts).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("body = EXCLUDED.body").
			Set("author = EXCLUDED.author").
			Set("score = EXCLUDED.score").
			Set("comment_count = EXCLUDED.comment_count").
			Set("search_term = EXCLUDED.search_term").
			Set("product_id = EXCLUDED.product_id").
			Set("created_at = EXCLUDED.created_at").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert posts: %w", err)
		}

		if _, err := tx.NewInsert().
			Model(&anns).
			On("CONFLICT (post_id) DO UPDATE").
			Set("cleaned_text = EXCLUDED.cleaned_text").
			Set("keywords = EXCLUDED.keywords").
			Set("entities = EXCLUDED.entities").
			Set("features = EXCLUDED.features").
			Set("sentiment_score = EXCLUDED.sentiment_score").
			Set("sentiment_label = EXCLUDED.sentiment_label").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert annotations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetPost retrieves a single post with its annotation.
func (r *PostRepository) GetPost(ctx context.Context, id core.ID) (*core.PostRecord, error) {
	var post postRow
	err := r.db.NewSelect().Model(&post).Where("p.id = ?", int64(id)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	anns, err := r.annotations(ctx, []int64{post.ID})
	if err != nil {
		return nil, err
	}
	return fromPostRows(&post, anns[post.ID]), nil
}

// ListPosts returns posts matching filter, oldest first.
func (r *PostRepository) ListPosts(ctx context.Context, filter core.PostFilter) ([]*core.PostRecord, error) {
	if filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var posts []postRow
	q := r.db.NewSelect().Model(&posts).OrderExpr("p.created_at ASC, p.id ASC")
	if filter.ProductID != "" {
		q = q.Where("p.product_id = ?", filter.ProductID)
	}
	if filter.Platform != "" {
		q = q.Where("p.platform = ?", filter.Platform)
	}
	if !filter.Since.IsZero() {
		q = q.Where("p.created_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	anns, err := r.annotations(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*core.PostRecord, len(posts))
	for i := range posts {
		results[i] = fromPostRows(&posts[i], anns[posts[i].ID])
	}
	return results, nil
}

func (r *PostRepository) annotations(ctx context.Context, ids []int64) (map[int64]*annotationRow, error) {
	var rows []annotationRow
	if err := r.db.NewSelect().Model(&rows).Where("pa.post_id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load annotations: %w", err)
	}
	byID := make(map[int64]*annotationRow, len(rows))
	for i := range rows {
		byID[rows[i].PostID] = &rows[i]
	}
	return byID, nil
}
