package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/platform/keylock"
	"sproutmarket/pkg/requestcontext"
)

type CartServiceSuite struct {
	suite.Suite
	svc     *Service
	catalog *catalog.MemoryCatalog
	ctx     context.Context
	buyerID id.BuyerID
}

func TestCartServiceSuite(t *testing.T) {
	suite.Run(t, new(CartServiceSuite))
}

func (s *CartServiceSuite) SetupTest() {
	s.catalog = catalog.NewMemoryCatalog()

	svc, err := New(store.NewMemory(), s.catalog, keylock.New())
	s.Require().NoError(err)
	s.svc = svc

	s.ctx = context.Background()
	s.buyerID = id.BuyerID(uuid.New())
}

func (s *CartServiceSuite) seedProduct(price int64, available int) id.ProductID {
	productID := id.ProductID(uuid.New())
	s.catalog.Put(catalog.Product{
		ID:                productID,
		FarmID:            id.FarmID(uuid.New()),
		UnitPrice:         decimal.NewFromInt(price),
		AvailableQuantity: available,
	})
	return productID
}

func (s *CartServiceSuite) TestAddItem() {
	s.Run("first add snapshots the catalog price", func() {
		productID := s.seedProduct(750, 100)

		cart, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 2)
		s.Require().NoError(err)
		s.Require().Len(cart.Items, 1)
		s.Equal(2, cart.Items[0].Quantity)
		s.True(cart.Items[0].UnitPrice.Equal(decimal.NewFromInt(750)))
	})

	s.Run("re-adding merges quantities into one line", func() {
		productID := s.seedProduct(500, 100)

		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 2)
		s.Require().NoError(err)
		cart, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 3)
		s.Require().NoError(err)

		item, ok := cart.Find(productID)
		s.Require().True(ok)
		s.Equal(5, item.Quantity)
		count := 0
		for _, it := range cart.Items {
			if it.ProductID == productID {
				count++
			}
		}
		s.Equal(1, count)
	})

	s.Run("merge keeps the price frozen at first add", func() {
		productID := s.seedProduct(500, 100)

		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 1)
		s.Require().NoError(err)

		s.catalog.Put(catalog.Product{
			ID:                productID,
			FarmID:            id.FarmID(uuid.New()),
			UnitPrice:         decimal.NewFromInt(900),
			AvailableQuantity: 100,
		})

		cart, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 1)
		s.Require().NoError(err)
		item, _ := cart.Find(productID)
		s.True(item.UnitPrice.Equal(decimal.NewFromInt(500)))
	})

	s.Run("zero and negative quantities rejected", func() {
		productID := s.seedProduct(500, 100)

		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 0)
		s.True(dErrors.Is(err, dErrors.CodeInvalidQuantity))

		_, err = s.svc.AddItem(s.ctx, s.buyerID, productID, -1)
		s.True(dErrors.Is(err, dErrors.CodeInvalidQuantity))
	})

	s.Run("unknown product rejected", func() {
		_, err := s.svc.AddItem(s.ctx, s.buyerID, id.ProductID(uuid.New()), 1)
		s.True(dErrors.Is(err, dErrors.CodeInvalidReference))
	})

	s.Run("pinned request time stamps the item", func() {
		productID := s.seedProduct(500, 100)
		at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, at)

		cart, err := s.svc.AddItem(ctx, s.buyerID, productID, 1)
		s.Require().NoError(err)
		item, _ := cart.Find(productID)
		s.Equal(at, item.AddedAt)
		s.Equal(at, item.UpdatedAt)
	})
}

func (s *CartServiceSuite) TestUpdateItem() {
	s.Run("sets an absolute quantity", func() {
		productID := s.seedProduct(500, 100)
		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 5)
		s.Require().NoError(err)

		cart, err := s.svc.UpdateItem(s.ctx, s.buyerID, productID, 2)
		s.Require().NoError(err)
		item, _ := cart.Find(productID)
		s.Equal(2, item.Quantity)
	})

	s.Run("zero quantity removes the line", func() {
		productID := s.seedProduct(500, 100)
		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 5)
		s.Require().NoError(err)

		cart, err := s.svc.UpdateItem(s.ctx, s.buyerID, productID, 0)
		s.Require().NoError(err)
		_, ok := cart.Find(productID)
		s.False(ok)
	})

	s.Run("negative quantity rejected", func() {
		productID := s.seedProduct(500, 100)
		_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 5)
		s.Require().NoError(err)

		_, err = s.svc.UpdateItem(s.ctx, s.buyerID, productID, -3)
		s.True(dErrors.Is(err, dErrors.CodeInvalidQuantity))
	})

	s.Run("absent line rejected", func() {
		_, err := s.svc.UpdateItem(s.ctx, s.buyerID, id.ProductID(uuid.New()), 2)
		s.True(dErrors.Is(err, dErrors.CodeItemNotFound))
	})
}

func (s *CartServiceSuite) TestRemoveItem() {
	productID := s.seedProduct(500, 100)
	_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 1)
	s.Require().NoError(err)

	cart, err := s.svc.RemoveItem(s.ctx, s.buyerID, productID)
	s.Require().NoError(err)
	s.True(cart.IsEmpty())

	// removing again is not an error
	_, err = s.svc.RemoveItem(s.ctx, s.buyerID, productID)
	s.Require().NoError(err)
}

func (s *CartServiceSuite) TestClear() {
	productID := s.seedProduct(500, 100)
	_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Clear(s.ctx, s.buyerID))

	cart, err := s.svc.Get(s.ctx, s.buyerID)
	s.Require().NoError(err)
	s.True(cart.IsEmpty())
}

// Any interleaving of mutations must leave the cart with unique product
// lines and strictly positive quantities.
func (s *CartServiceSuite) TestConcurrentMutationsKeepInvariants() {
	const goroutines = 40
	products := make([]id.ProductID, 5)
	for i := range products {
		products[i] = s.seedProduct(500, 1000)
	}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 20; i++ {
				productID := products[rng.Intn(len(products))]
				switch rng.Intn(3) {
				case 0:
					_, err := s.svc.AddItem(s.ctx, s.buyerID, productID, 1+rng.Intn(3))
					s.Require().NoError(err)
				case 1:
					if _, err := s.svc.UpdateItem(s.ctx, s.buyerID, productID, rng.Intn(4)); err != nil {
						s.Require().True(dErrors.Is(err, dErrors.CodeItemNotFound))
					}
				case 2:
					_, err := s.svc.RemoveItem(s.ctx, s.buyerID, productID)
					s.Require().NoError(err)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	cart, err := s.svc.Get(s.ctx, s.buyerID)
	s.Require().NoError(err)

	seen := make(map[id.ProductID]bool)
	for _, item := range cart.Items {
		s.False(seen[item.ProductID], "duplicate product line")
		seen[item.ProductID] = true
		s.Positive(item.Quantity)
	}
}
