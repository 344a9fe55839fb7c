// Package store persists buyer carts. The production implementation is a
// Redis hash per buyer; a memory implementation with identical semantics
// backs unit tests and cacheless deployments.
package store

import (
	"context"

	"sproutmarket/internal/cart/models"
	id "sproutmarket/pkg/domain"
)

// Store is the cart persistence contract. Implementations provide storage
// only; merge-on-add and quantity validation live in the service, which
// serializes all mutations per buyer. Implementations return sentinel errors
// (ErrTimeout, ErrUnavailable) for infrastructure failures.
type Store interface {
	// Get returns the buyer's cart, or an empty cart if none exists.
	// Absence is not an error.
	Get(ctx context.Context, buyerID id.BuyerID) (models.Cart, error)

	// UpsertItem writes one item line, creating the cart entry if needed.
	UpsertItem(ctx context.Context, buyerID id.BuyerID, item models.Item) error

	// RemoveItem deletes one item line. Reports whether a line existed;
	// removing an absent line is not an error.
	RemoveItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID) (bool, error)

	// RemoveItems deletes several item lines at once (post-checkout cleanup).
	RemoveItems(ctx context.Context, buyerID id.BuyerID, productIDs []id.ProductID) error

	// Clear removes the entire cart entry. Idempotent.
	Clear(ctx context.Context, buyerID id.BuyerID) error
}
