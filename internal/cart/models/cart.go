package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "sproutmarket/pkg/domain"
)

// Item is one product line in a buyer's cart. UnitPrice is the catalog price
// frozen at the moment the item was first added; later catalog changes do not
// touch it (frozen-price policy).
type Item struct {
	ProductID id.ProductID    `json:"productId"`
	FarmID    id.FarmID       `json:"farmId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	AddedAt   time.Time       `json:"addedAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Subtotal is quantity times the frozen unit price.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a buyer's in-progress selection. Product IDs are unique within
// Items; re-adding a product merges quantities instead of duplicating lines.
// The zero items slice is a valid empty cart; reads never fail on absence.
type Cart struct {
	BuyerID   id.BuyerID `json:"buyerId"`
	Items     []Item     `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the item for productID and whether it exists.
func (c Cart) Find(productID id.ProductID) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// Total sums the subtotals of all items.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}
