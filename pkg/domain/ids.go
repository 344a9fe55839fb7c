// Package domain defines strongly typed identifiers shared across modules.
//
// Wrapping uuid.UUID in distinct named types prevents accidentally passing a
// buyer ID where an order ID is expected; the compiler catches the mix-up.
package domain

import "github.com/google/uuid"

type (
	// BuyerID identifies a marketplace buyer (the cart/order owner).
	BuyerID uuid.UUID

	// FarmID identifies the farm that fulfills an order.
	FarmID uuid.UUID

	// ProductID identifies a catalog product.
	ProductID uuid.UUID

	// OrderID identifies an order created at checkout.
	OrderID uuid.UUID

	// ActorID identifies whoever performed an action: a buyer, a farm
	// operator, or an admin.
	ActorID uuid.UUID
)

func (id BuyerID) String() string   { return uuid.UUID(id).String() }
func (id FarmID) String() string    { return uuid.UUID(id).String() }
func (id ProductID) String() string { return uuid.UUID(id).String() }
func (id OrderID) String() string   { return uuid.UUID(id).String() }
func (id ActorID) String() string   { return uuid.UUID(id).String() }

func (id BuyerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id FarmID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProductID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// ParseBuyerID parses a buyer ID from its string form.
func ParseBuyerID(s string) (BuyerID, error) {
	u, err := uuid.Parse(s)
	return BuyerID(u), err
}

// ParseFarmID parses a farm ID from its string form.
func ParseFarmID(s string) (FarmID, error) {
	u, err := uuid.Parse(s)
	return FarmID(u), err
}

// ParseProductID parses a product ID from its string form.
func ParseProductID(s string) (ProductID, error) {
	u, err := uuid.Parse(s)
	return ProductID(u), err
}

// ParseOrderID parses an order ID from its string form.
func ParseOrderID(s string) (OrderID, error) {
	u, err := uuid.Parse(s)
	return OrderID(u), err
}

// ParseActorID parses an actor ID from its string form.
func ParseActorID(s string) (ActorID, error) {
	u, err := uuid.Parse(s)
	return ActorID(u), err
}
