// Package postgres stores posts, annotations, insights and embeddings in
// PostgreSQL. Embeddings use the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	// DriverPG selects bun's native pgdriver.
	DriverPG = "pgdriver"
	// DriverPQ selects lib/pq through database/sql.
	DriverPQ = "pq"
)

// Options configures Open.
type Options struct {
	DSN             string
	Driver          string // DriverPG (default) or DriverPQ
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          *slog.Logger
}

// Open connects to PostgreSQL and wraps the connection in a bun.DB.
// No query is sent until the first operation; call Ping to check the server.
func Open(opts Options) (*bun.DB, error) {
	if opts.DSN == "" {
		return nil, ErrDSNRequired
	}

	var sqldb *sql.DB
	switch opts.Driver {
	case "", DriverPG:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
	case DriverPQ:
		var err error
		sqldb, err = sql.Open("postgres", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}

	if opts.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return NewDB(sqldb, opts.Logger), nil
}

// NewDB wraps an existing connection pool. Tests pass a sqlmock connection.
func NewDB(sqldb *sql.DB, logger *slog.Logger) *bun.DB {
	if logger == nil {
		logger = slog.Default()
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	db.AddQueryHook(&slogQueryHook{logger: logger.With("component", "postgres")})
	return db
}

// slogQueryHook logs every query at debug level and failures at warn.
type slogQueryHook struct {
	logger *slog.Logger
}

var _ bun.QueryHook = (*slogQueryHook)(nil)

func (h *slogQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slogQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	if event.Err != nil && event.Err != sql.ErrNoRows {
		h.logger.WarnContext(ctx, "query failed", "op", event.Operation(), "elapsed", elapsed, "err", event.Err)
		return
	}
	h.logger.DebugContext(ctx, "query", "op", event.Operation(), "elapsed", elapsed, "query", event.Query)
}

// CreateSchema enables pgvector and creates every table and index if missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	models := []any{
		(*postRow)(nil),
		(*annotationRow)(nil),
		(*insightRow)(nil),
		(*embeddingRow)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*postRow)(nil)).
		Index("posts_product_created_idx").
		Column("product_id", "created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*insightRow)(nil)).
		Index("insights_scope_idx").
		Column("product_id", "platform", "timeframe").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
