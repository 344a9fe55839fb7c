package store

import (
	"context"
	"sort"
	"sync"

	"sproutmarket/internal/analytics/models"
	ordermodels "sproutmarket/internal/order/models"
)

// MemorySource is a seedable order source for tests.
type MemorySource struct {
	mu     sync.RWMutex
	orders []*ordermodels.Order
}

// NewMemory creates an empty in-memory order source.
func NewMemory() *MemorySource {
	return &MemorySource{}
}

// Add seeds orders into the source.
func (s *MemorySource) Add(orders ...*ordermodels.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, orders...)
}

func (s *MemorySource) OrdersInWindow(_ context.Context, query models.Query) ([]*ordermodels.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*ordermodels.Order
	for _, order := range s.orders {
		if order.CreatedAt.Before(query.Window.From) || !order.CreatedAt.Before(query.Window.To) {
			continue
		}
		if query.FarmID != nil && order.FarmID != *query.FarmID {
			continue
		}
		if query.BuyerID != nil && order.BuyerID != *query.BuyerID {
			continue
		}
		matched = append(matched, order)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}
