package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
	"github.com/uptrace/bun"
)

// VectorStore implements storage.VectorStore on a pgvector column using the
// cosine distance operator.
type VectorStore struct {
	db *bun.DB
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore.
func NewVectorStore(db *bun.DB) *VectorStore {
	return &VectorStore{db: db}
}

// Close closes the underlying connection pool.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// Upsert writes records keyed on (content_id, content_type).
func (s *VectorStore) Upsert(ctx context.Context, records ...*core.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]embeddingRow, len(records))
	for i, record := range records {
		if err := core.ValidateIndexedRecord(record); err != nil {
			return err
		}
		record.UpdatedAt = now
		rows[i] = embeddingRow{
			ContentID:   record.ContentID,
			ContentType: record.ContentType,
			Text:        record.Text,
			Embedding:   pgvector.NewVector(record.Vector),
			Metadata:    record.Metadata,
			UpdatedAt:   now,
		}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (content_id, content_type) DO UPDATE").
			Set("text = EXCLUDED.text").
			Set("embedding = EXCLUDED.embedding").
			Set("metadata = EXCLUDED.metadata").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert embeddings: %w", err)
		}
		return nil
	})
}

// Query orders by cosine distance and reports similarity as 1 - distance.
func (s *VectorStore) Query(ctx context.Context, vector []float32, opts core.SearchOptions) ([]core.SearchResult, error) {
	if len(vector) == 0 || opts.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	v := pgvector.NewVector(vector)

	var rows []embeddingRow
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("ce.*").
		ColumnExpr("1 - (ce.embedding <=> ?::vector) AS similarity", v).
		Where("1 - (ce.embedding <=> ?::vector) >= ?", v, opts.Threshold).
		OrderExpr("ce.embedding <=> ?::vector", v).
		Limit(opts.Limit)
	if opts.ContentType != "" {
		q = q.Where("ce.content_type = ?", opts.ContentType)
	}
	if err := q.Scan(ctx); err != nil {
		if strings.Contains(err.Error(), "different vector dimensions") {
			return nil, fmt.Errorf("%w: %v", storage.ErrDimensionMismatch, err)
		}
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]core.SearchResult, len(rows))
	for i := range rows {
		results[i] = core.SearchResult{
			Record: &core.IndexedRecord{
				ContentID:   rows[i].ContentID,
				ContentType: rows[i].ContentType,
				Text:        rows[i].Text,
				Vector:      rows[i].Embedding.Slice(),
				Metadata:    rows[i].Metadata,
				UpdatedAt:   rows[i].UpdatedAt,
			},
			Similarity: rows[i].Similarity,
		}
	}
	return results, nil
}

// Count returns the number of stored embeddings.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*embeddingRow)(nil)).Count(ctx)
}
