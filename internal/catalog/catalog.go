// Package catalog defines the product catalog contract consumed by the order
// engine. The catalog itself is owned by the product service; this package
// carries the interface plus a memory implementation and an HTTP client.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	id "sproutmarket/pkg/domain"
)

// Product is the slice of catalog data checkout needs: who sells it, what it
// costs right now, and how much is left.
type Product struct {
	ID                id.ProductID
	FarmID            id.FarmID
	UnitPrice         decimal.Decimal
	AvailableQuantity int
}

// Catalog resolves products. Implementations return sentinel.ErrNotFound for
// unknown products and sentinel.ErrUnavailable when the upstream is down.
type Catalog interface {
	GetProduct(ctx context.Context, productID id.ProductID) (Product, error)
}
