// Package store persists orders, their status history, and delivery
// tracking. The production implementation is PostgreSQL; a memory
// implementation with identical semantics backs unit tests.
package store

import (
	"context"
	"time"

	"sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
)

// Store is the order persistence contract. Implementations return sentinel
// errors: ErrNotFound for missing orders, ErrConflict when a conditional
// status update loses a race, ErrInvalidState when tracking is appended to
// an order whose status does not allow it.
type Store interface {
	// Create persists a new order with its items and initial history entry
	// atomically.
	Create(ctx context.Context, order *models.Order) error

	// Get loads one order with items, status history, and tracking events.
	Get(ctx context.Context, orderID id.OrderID) (*models.Order, error)

	// ListByBuyer returns the buyer's orders (items included, history and
	// tracking omitted), newest first.
	ListByBuyer(ctx context.Context, buyerID id.BuyerID, filter models.ListFilter) ([]*models.Order, error)

	// ListByFarm returns the farm's orders, newest first.
	ListByFarm(ctx context.Context, farmID id.FarmID, filter models.ListFilter) ([]*models.Order, error)

	// UpdateStatus moves the order from expected to next only if it is still
	// in expected, recording a history entry in the same transaction. A lost
	// race surfaces as ErrConflict so exactly one concurrent caller wins.
	UpdateStatus(ctx context.Context, orderID id.OrderID, expected, next models.Status, actorID id.ActorID, now time.Time) error

	// AddTracking appends a tracking event, verifying under lock that the
	// order's current status allows tracking.
	AddTracking(ctx context.Context, orderID id.OrderID, event models.TrackingEvent) error
}
