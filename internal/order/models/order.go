package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
)

// CurrencyXOF is the only currency the marketplace trades in.
const CurrencyXOF = "XOF"

// Item is one product line on an order. UnitPrice is the cart's frozen
// price, copied at checkout; it never tracks later catalog changes.
type Item struct {
	ProductID id.ProductID    `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal is quantity times the frozen unit price.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusChange is one entry in an order's status history.
type StatusChange struct {
	Status    Status     `json:"status"`
	ActorID   id.ActorID `json:"actorId"`
	CreatedAt time.Time  `json:"createdAt"`
}

// TrackingEvent is one delivery tracking update appended by the farm.
type TrackingEvent struct {
	Location         string     `json:"location"`
	Description      string     `json:"description"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
	ActorID          id.ActorID `json:"actorId"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Order is the aggregate root created at checkout.
//
// Invariants:
//   - Items is non-empty; all quantities are strictly positive
//   - every item belongs to FarmID (one order per farm)
//   - TotalAmount equals the sum of item subtotals
//   - Status only changes along the lifecycle machine; History records every
//     change in order
type Order struct {
	ID          id.OrderID      `json:"id"`
	BuyerID     id.BuyerID      `json:"buyerId"`
	FarmID      id.FarmID       `json:"farmId"`
	Status      Status          `json:"status"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	History     []StatusChange  `json:"history,omitempty"`
	Tracking    []TrackingEvent `json:"tracking,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// New builds a pending order from checkout lines. The total is computed
// here, never trusted from the caller.
func New(orderID id.OrderID, buyerID id.BuyerID, farmID id.FarmID, items []Item, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeEmptyOrder, "order must contain at least one item")
	}
	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, dErrors.Newf(dErrors.CodeInvalidQuantity, "item %s has non-positive quantity", item.ProductID)
		}
		total = total.Add(item.Subtotal())
	}

	return &Order{
		ID:          orderID,
		BuyerID:     buyerID,
		FarmID:      farmID,
		Status:      StatusPending,
		Items:       items,
		TotalAmount: total,
		Currency:    CurrencyXOF,
		History: []StatusChange{{
			Status:    StatusPending,
			ActorID:   id.ActorID(buyerID),
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ListFilter narrows order listings. A nil Status matches all statuses.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}
