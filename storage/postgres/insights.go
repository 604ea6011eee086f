package postgres

import (
	"context"
	"fmt"

	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
	"github.com/uptrace/bun"
)

// InsightRepository implements storage.InsightRepository.
type InsightRepository struct {
	db *bun.DB
}

var _ storage.InsightRepository = (*InsightRepository)(nil)

// NewInsightRepository creates an InsightRepository.
func NewInsightRepository(db *bun.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Close closes the underlying connection pool.
func (r *InsightRepository) Close() error {
	return r.db.Close()
}

// SaveInsights upserts insights by ID.
func (r *InsightRepository) SaveInsights(ctx context.Context, insights ...*core.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	rows := make([]insightRow, len(insights))
	for i, in := range insights {
		if err := core.ValidateInsight(in); err != nil {
			return err
		}
		rows[i] = toInsightRow(in)
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("type = EXCLUDED.type").
			Set("keywords = EXCLUDED.keywords").
			Set("title = EXCLUDED.title").
			Set("description = EXCLUDED.description").
			Set("content_count = EXCLUDED.content_count").
			Set("confidence = EXCLUDED.confidence").
			Set("average_sentiment = EXCLUDED.average_sentiment").
			Set("distribution = EXCLUDED.distribution").
			Set("generated_at = EXCLUDED.generated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert insights: %w", err)
		}
		return nil
	})
}

// ListInsights returns insights for a scope, highest confidence first.
func (r *InsightRepository) ListInsights(ctx context.Context, productID, platform, timeframe string) ([]*core.Insight, error) {
	var rows []insightRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("i.product_id = ?", productID).
		Where("i.platform = ?", platform).
		Where("i.timeframe = ?", timeframe).
		OrderExpr("i.confidence DESC, i.keyword ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}

	out := make([]*core.Insight, len(rows))
	for i := range rows {
		out[i] = fromInsightRow(&rows[i])
	}
	return out, nil
}
