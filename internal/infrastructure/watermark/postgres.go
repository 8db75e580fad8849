package watermark

import (
	"context"
	"errors"
	"fmt"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS notifier_watermarks (
			name       TEXT PRIMARY KEY,
			trade_id   TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	selectWatermarkQuery = `
		SELECT trade_id
		FROM notifier_watermarks
		WHERE name = $1`

	upsertWatermarkQuery = `
		INSERT INTO notifier_watermarks (name, trade_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET trade_id = EXCLUDED.trade_id,
		    updated_at = EXCLUDED.updated_at`
)

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type commandTagExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type querier interface {
	queryRower
	commandTagExecutor
}

// PostgresStore keeps the watermark as one row of notifier_watermarks keyed by name.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool
	name string
}

var _ interfaces.WatermarkStore = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and makes sure the table exists.
func NewPostgresStore(ctx context.Context, dsn, name string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	store, err := newPostgresStore(ctx, pool, name)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.pool = pool
	return store, nil
}

func newPostgresStore(ctx context.Context, db querier, name string) (*PostgresStore, error) {
	if name == "" {
		return nil, errors.New("watermark name is required")
	}
	if _, err := db.Exec(ctx, createTableQuery); err != nil {
		return nil, fmt.Errorf("ensure notifier_watermarks: %w", err)
	}
	return &PostgresStore{db: db, name: name}, nil
}

func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (trades.TradeID, bool, error) {
	var id string
	if err := s.db.QueryRow(ctx, selectWatermarkQuery, s.name).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select watermark %s: %w", s.name, err)
	}
	if id == "" {
		return "", false, nil
	}
	return trades.TradeID(id), true, nil
}

func (s *PostgresStore) Save(ctx context.Context, id trades.TradeID) error {
	if _, err := s.db.Exec(ctx, upsertWatermarkQuery, s.name, id.String()); err != nil {
		return fmt.Errorf("upsert watermark %s: %w", s.name, err)
	}
	return nil
}
