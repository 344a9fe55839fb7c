package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

// MemoryStore implements Store with the same conditional-update semantics as
// the PostgreSQL store. Used by unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[id.OrderID]*models.Order
}

// NewMemory creates an empty in-memory order store.
func NewMemory() *MemoryStore {
	return &MemoryStore{orders: make(map[id.OrderID]*models.Order)}
}

func (s *MemoryStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists: %w", order.ID, sentinel.ErrConflict)
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID id.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ListByBuyer(_ context.Context, buyerID id.BuyerID, filter models.ListFilter) ([]*models.Order, error) {
	return s.list(func(o *models.Order) bool { return o.BuyerID == buyerID }, filter), nil
}

func (s *MemoryStore) ListByFarm(_ context.Context, farmID id.FarmID, filter models.ListFilter) ([]*models.Order, error) {
	return s.list(func(o *models.Order) bool { return o.FarmID == farmID }, filter), nil
}

func (s *MemoryStore) list(match func(*models.Order) bool, filter models.ListFilter) []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*models.Order
	for _, order := range s.orders {
		if !match(order) {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		clone := cloneOrder(order)
		clone.History = nil
		clone.Tracking = nil
		orders = append(orders, clone)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID.String() > orders[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(orders) {
			return nil
		}
		orders = orders[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(orders) {
		orders = orders[:filter.Limit]
	}
	return orders
}

func (s *MemoryStore) UpdateStatus(_ context.Context, orderID id.OrderID, expected, next models.Status, actorID id.ActorID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	if order.Status != expected {
		return fmt.Errorf("order %s no longer in status %s: %w", orderID, expected, sentinel.ErrConflict)
	}

	order.Status = next
	order.UpdatedAt = now
	order.History = append(order.History, models.StatusChange{
		Status:    next,
		ActorID:   actorID,
		CreatedAt: now,
	})
	return nil
}

func (s *MemoryStore) AddTracking(_ context.Context, orderID id.OrderID, event models.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	if !order.Status.AllowsTracking() {
		return fmt.Errorf("order %s is %s: %w", orderID, order.Status, sentinel.ErrInvalidState)
	}
	order.Tracking = append(order.Tracking, event)
	return nil
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	clone.Items = append([]models.Item(nil), order.Items...)
	clone.History = append([]models.StatusChange(nil), order.History...)
	clone.Tracking = append([]models.TrackingEvent(nil), order.Tracking...)
	return &clone
}
