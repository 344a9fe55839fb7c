package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the order tables when they do not exist yet. The service
// owns its schema; carts live in Redis and have no table here.
func Migrate(ctx context.Context, db *sql.DB) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			buyer_id UUID NOT NULL,
			farm_id UUID NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			total_amount NUMERIC(12,2) NOT NULL,
			currency VARCHAR(3) NOT NULL DEFAULT 'XOF',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(12,2) NOT NULL,
			position INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS order_status_history (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			status VARCHAR(50) NOT NULL,
			actor_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS delivery_tracking (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			location VARCHAR(255),
			description TEXT NOT NULL,
			estimated_arrival TIMESTAMPTZ,
			actor_id UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_orders_buyer_id ON orders(buyer_id);
		CREATE INDEX IF NOT EXISTS idx_orders_farm_id ON orders(farm_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
		CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_order_items_product_id ON order_items(product_id);
		CREATE INDEX IF NOT EXISTS idx_status_history_order_id ON order_status_history(order_id);
		CREATE INDEX IF NOT EXISTS idx_tracking_order_id ON delivery_tracking(order_id);
	`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate order schema: %w", err)
	}
	return nil
}
