package domain

import "github.com/google/uuid"

// Text marshalling so the typed IDs serialize as canonical UUID strings in
// JSON payloads and map keys.

func (id BuyerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *BuyerID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = BuyerID(u)
	return nil
}

func (id FarmID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *FarmID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = FarmID(u)
	return nil
}

func (id ProductID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ProductID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = ProductID(u)
	return nil
}

func (id OrderID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *OrderID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = OrderID(u)
	return nil
}

func (id ActorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = ActorID(u)
	return nil
}
