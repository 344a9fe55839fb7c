// Package events carries domain events emitted by the order engine for
// external subscribers (push-notification relay, downstream consumers).
// Delivery is best-effort: a failed publish never fails the operation that
// produced the event.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	id "sproutmarket/pkg/domain"
)

// Type names a domain event.
type Type string

const (
	TypeOrderCreated       Type = "order_created"
	TypeOrderStatusChanged Type = "order_status_changed"
	TypeTrackingAdded      Type = "tracking_added"
)

// Event is emitted from domain logic to capture key order actions. Keep it
// transport-agnostic so sinks can fan out (Kafka, memory, future SNS).
type Event struct {
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	OrderID   id.OrderID      `json:"order_id"`
	BuyerID   id.BuyerID      `json:"buyer_id"`
	FarmID    id.FarmID       `json:"farm_id"`
	ActorID   id.ActorID      `json:"actor_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Total     decimal.Decimal `json:"total,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
}

// Sink receives published events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
