package badger

import (
	"cmp"
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/storage"
)

// InsightRepository implements storage.InsightRepository for BadgerDB.
type InsightRepository struct {
	backend *Backend
}

var _ storage.InsightRepository = (*InsightRepository)(nil)

// NewInsightRepository creates a new InsightRepository.
func NewInsightRepository(backend *Backend) *InsightRepository {
	return &InsightRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *InsightRepository) Close() error {
	return nil
}

// SaveInsights upserts insights keyed by scope and ID.
func (r *InsightRepository) SaveInsights(ctx context.Context, insights ...*core.Insight) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, insight := range insights {
			if err := core.ValidateInsight(insight); err != nil {
				return err
			}
			value, err := storage.MarshalInsight(insight)
			if err != nil {
				return err
			}
			if err := tx.Set(makeInsightKey(insight), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListInsights returns insights for a scope, highest confidence first.
func (r *InsightRepository) ListInsights(ctx context.Context, productID, platform, timeframe string) ([]*core.Insight, error) {
	var results []*core.Insight
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeInsightScope(productID, platform, timeframe)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var insight *core.Insight
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				insight, err = storage.UnmarshalInsight(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, insight)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.Insight) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	return results, nil
}
