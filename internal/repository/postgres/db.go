package postgres

import (
	"context"
	"errors"
	"fmt"

	"orderdesk-backend/config"
	"orderdesk-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the part of *pgxpool.Pool the repositories use. pgxmock pools satisfy it.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is implemented by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPgxPool creates a new pgx connection pool
func NewPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS riders (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		delivery_method TEXT NOT NULL,
		delivery_type TEXT NOT NULL DEFAULT 'unassigned',
		rider_id UUID REFERENCES riders(id),
		courier TEXT,
		tracking_code TEXT,
		courier_city_id BIGINT,
		courier_zone_id BIGINT,
		courier_area_id BIGINT,
		sub_total NUMERIC(12,2) NOT NULL,
		shipping_cost NUMERIC(12,2) NOT NULL,
		discount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL,
		shipping_address JSONB NOT NULL,
		revision BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT orders_assignment_shape CHECK (
			(delivery_type = 'unassigned' AND rider_id IS NULL AND tracking_code IS NULL) OR
			(delivery_type = 'internal' AND rider_id IS NOT NULL AND tracking_code IS NULL) OR
			(delivery_type = 'external' AND rider_id IS NULL AND tracking_code IS NOT NULL)
		)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_tracking_code ON orders(tracking_code) WHERE tracking_code IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_orders_rider_status ON orders(rider_id, status) WHERE rider_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		variant_id TEXT,
		name TEXT NOT NULL DEFAULT '',
		quantity INT NOT NULL CHECK (quantity > 0),
		price NUMERIC(12,2) NOT NULL,
		unit_weight NUMERIC(10,3),
		position INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id, position)`,
	`CREATE TABLE IF NOT EXISTS order_history (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		previous_status TEXT,
		new_status TEXT NOT NULL,
		reason TEXT,
		created_by TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS shipping_rates (
		id SERIAL PRIMARY KEY,
		province TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		cost NUMERIC(12,2) NOT NULL,
		free_shipping_threshold NUMERIC(12,2),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_shipping_rates_province ON shipping_rates(LOWER(province))`,
}

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, db DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewError(domain.KindNotFound, what+" not found", nil)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
