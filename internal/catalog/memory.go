package catalog

import (
	"context"
	"sync"

	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

// MemoryCatalog is a seedable in-memory catalog for tests and deployments
// without a product service configured.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[id.ProductID]Product
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{products: make(map[id.ProductID]Product)}
}

func (c *MemoryCatalog) GetProduct(_ context.Context, productID id.ProductID) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[productID]
	if !ok {
		return Product{}, sentinel.ErrNotFound
	}
	return product, nil
}

// Put seeds or replaces a product.
func (c *MemoryCatalog) Put(product Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

// SetStock adjusts a seeded product's available quantity.
func (c *MemoryCatalog) SetStock(productID id.ProductID, available int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if product, ok := c.products[productID]; ok {
		product.AvailableQuantity = available
		c.products[productID] = product
	}
}
