// Package store gives the analytics aggregator read-only access to order
// history. Queries take no locks and never block writers; a slightly stale
// snapshot is acceptable.
package store

import (
	"context"

	"sproutmarket/internal/analytics/models"
	ordermodels "sproutmarket/internal/order/models"
)

// OrderSource loads the orders matching a query window and filters, items
// and status history included. The aggregator computes all derived views in
// memory from this snapshot.
type OrderSource interface {
	OrdersInWindow(ctx context.Context, query models.Query) ([]*ordermodels.Order, error)
}
