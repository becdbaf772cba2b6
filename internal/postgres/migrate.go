package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		sku VARCHAR(50) NOT NULL UNIQUE,
		price_cents BIGINT NOT NULL CHECK (price_cents > 0),
		quantity_in_stock INT NOT NULL DEFAULT 0 CHECK (quantity_in_stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		notes VARCHAR(200) NOT NULL DEFAULT '',
		total_cents BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INT NOT NULL CHECK (quantity >= 1),
		unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Seed inserts the demo catalog, but only into an empty products table.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO products(name, sku, price_cents, quantity_in_stock) VALUES
		('Laptop Dell', 'LAP-DELL-001', 450000, 10),
		('Monitor LG', 'MON-LG-002', 120000, 15),
		('Klawiatura Logitech', 'KEY-LOG-003', 35000, 30)`)
	return err
}
