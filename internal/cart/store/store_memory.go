package store

import (
	"context"
	"sort"
	"sync"

	"sproutmarket/internal/cart/models"
	id "sproutmarket/pkg/domain"
)

// MemoryStore implements Store using in-memory maps. Used by unit tests and
// deployments without Redis configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[id.BuyerID]map[id.ProductID]models.Item
}

// NewMemory creates an empty in-memory cart store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		carts: make(map[id.BuyerID]map[id.ProductID]models.Item),
	}
}

func (s *MemoryStore) Get(_ context.Context, buyerID id.BuyerID) (models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return assembleCart(buyerID, s.carts[buyerID]), nil
}

func (s *MemoryStore) UpsertItem(_ context.Context, buyerID id.BuyerID, item models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[buyerID]
	if lines == nil {
		lines = make(map[id.ProductID]models.Item)
		s.carts[buyerID] = lines
	}
	lines[item.ProductID] = item
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, buyerID id.BuyerID, productID id.ProductID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[buyerID]
	if lines == nil {
		return false, nil
	}
	_, existed := lines[productID]
	delete(lines, productID)
	if len(lines) == 0 {
		delete(s.carts, buyerID)
	}
	return existed, nil
}

func (s *MemoryStore) RemoveItems(_ context.Context, buyerID id.BuyerID, productIDs []id.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[buyerID]
	if lines == nil {
		return nil
	}
	for _, productID := range productIDs {
		delete(lines, productID)
	}
	if len(lines) == 0 {
		delete(s.carts, buyerID)
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, buyerID id.BuyerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, buyerID)
	return nil
}

// assembleCart orders item lines by when they were added (product ID as a
// deterministic tie-break) so reads are stable across calls.
func assembleCart(buyerID id.BuyerID, lines map[id.ProductID]models.Item) models.Cart {
	cart := models.Cart{BuyerID: buyerID}
	if len(lines) == 0 {
		return cart
	}

	cart.Items = make([]models.Item, 0, len(lines))
	for _, item := range lines {
		cart.Items = append(cart.Items, item)
	}
	sort.Slice(cart.Items, func(i, j int) bool {
		a, b := cart.Items[i], cart.Items[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.ProductID.String() < b.ProductID.String()
	})

	for _, item := range cart.Items {
		if item.UpdatedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = item.UpdatedAt
		}
	}
	return cart
}
