package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ender/domain"
)

const (
	DefaultLiquidityTiersTable   = "liquidity_tiers"
	DefaultPerpetualMarketsTable = "perpetual_markets"
)

var errEmptyIdentifier = errors.New("empty identifier")

// Options names the tables the caches are loaded from.
type Options struct {
	LiquidityTiersTable   string
	PerpetualMarketsTable string
	MaxConns              int32
}

// Storage wraps the PostgreSQL pool used by the service.
type Storage struct {
	pool         *pgxpool.Pool
	tiersTable   string
	marketsTable string
}

// New connects to dsn, which may be a URL or a key/value connection string.
func New(ctx context.Context, dsn string, opts Options) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewFromPool(pool, opts), nil
}

// NewFromPool wraps an existing pool. Close closes it.
func NewFromPool(pool *pgxpool.Pool, opts Options) *Storage {
	if opts.LiquidityTiersTable == "" {
		opts.LiquidityTiersTable = DefaultLiquidityTiersTable
	}
	if opts.PerpetualMarketsTable == "" {
		opts.PerpetualMarketsTable = DefaultPerpetualMarketsTable
	}
	return &Storage{pool: pool, tiersTable: opts.LiquidityTiersTable, marketsTable: opts.PerpetualMarketsTable}
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Call runs `SELECT procedure($1::jsonb)` and returns the JSON result. The
// procedure is expected to perform its mutation atomically.
func (s *Storage) Call(ctx context.Context, procedure string, arg json.RawMessage) (json.RawMessage, error) {
	ident, err := identifier(procedure)
	if err != nil {
		return nil, fmt.Errorf("procedure %q: %w", procedure, err)
	}
	var out []byte
	err = s.pool.QueryRow(ctx, "SELECT "+ident+"($1::jsonb) AS result", arg).Scan(&out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListLiquidityTiers returns every persisted tier ordered by id.
func (s *Storage) ListLiquidityTiers(ctx context.Context) ([]domain.LiquidityTier, error) {
	return listRows[domain.LiquidityTier](ctx, s.pool, s.tiersTable)
}

// ListPerpetualMarkets returns every persisted market ordered by id.
func (s *Storage) ListPerpetualMarkets(ctx context.Context) ([]domain.PerpetualMarket, error) {
	return listRows[domain.PerpetualMarket](ctx, s.pool, s.marketsTable)
}

func listRows[T any](ctx context.Context, pool *pgxpool.Pool, table string) ([]T, error) {
	ident, err := identifier(table)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", table, err)
	}
	rows, err := pool.Query(ctx, "SELECT row_to_json(t) FROM "+ident+" t ORDER BY t.id")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		var (
			raw []byte
			v   T
		)
		if err := row.Scan(&raw); err != nil {
			return v, err
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("%s row: %w", table, err)
		}
		return v, nil
	})
}

// identifier quotes an optionally schema qualified name.
func identifier(name string) (string, error) {
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if p == "" {
			return "", errEmptyIdentifier
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}
