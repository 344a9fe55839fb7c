package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"sproutmarket/internal/cart/models"
	id "sproutmarket/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func testItem(productID id.ProductID, quantity int, addedAt time.Time) models.Item {
	return models.Item{
		ProductID: productID,
		FarmID:    id.FarmID(uuid.New()),
		Quantity:  quantity,
		UnitPrice: decimal.NewFromInt(500),
		AddedAt:   addedAt,
		UpdatedAt: addedAt,
	}
}

func (s *MemoryStoreSuite) TestGet() {
	s.Run("absent buyer yields empty cart, not an error", func() {
		buyerID := id.BuyerID(uuid.New())

		cart, err := s.store.Get(s.ctx, buyerID)
		s.Require().NoError(err)
		s.Equal(buyerID, cart.BuyerID)
		s.True(cart.IsEmpty())
	})

	s.Run("items come back ordered by time added", func() {
		buyerID := id.BuyerID(uuid.New())
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		second := testItem(id.ProductID(uuid.New()), 2, base.Add(time.Minute))
		first := testItem(id.ProductID(uuid.New()), 1, base)

		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, second))
		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, first))

		cart, err := s.store.Get(s.ctx, buyerID)
		s.Require().NoError(err)
		s.Require().Len(cart.Items, 2)
		s.Equal(first.ProductID, cart.Items[0].ProductID)
		s.Equal(second.ProductID, cart.Items[1].ProductID)
		s.Equal(second.UpdatedAt, cart.UpdatedAt)
	})
}

func (s *MemoryStoreSuite) TestUpsertItem() {
	s.Run("replaces an existing line for the same product", func() {
		buyerID := id.BuyerID(uuid.New())
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		item := testItem(id.ProductID(uuid.New()), 2, base)

		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, item))
		item.Quantity = 5
		item.UpdatedAt = base.Add(time.Minute)
		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, item))

		cart, err := s.store.Get(s.ctx, buyerID)
		s.Require().NoError(err)
		s.Require().Len(cart.Items, 1)
		s.Equal(5, cart.Items[0].Quantity)
	})

	s.Run("buyers do not see each other's carts", func() {
		buyerA := id.BuyerID(uuid.New())
		buyerB := id.BuyerID(uuid.New())
		now := time.Now()

		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerA, testItem(id.ProductID(uuid.New()), 1, now)))

		cart, err := s.store.Get(s.ctx, buyerB)
		s.Require().NoError(err)
		s.True(cart.IsEmpty())
	})
}

func (s *MemoryStoreSuite) TestRemoveItem() {
	s.Run("removing an existing line reports existed", func() {
		buyerID := id.BuyerID(uuid.New())
		item := testItem(id.ProductID(uuid.New()), 3, time.Now())
		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, item))

		existed, err := s.store.RemoveItem(s.ctx, buyerID, item.ProductID)
		s.Require().NoError(err)
		s.True(existed)

		cart, err := s.store.Get(s.ctx, buyerID)
		s.Require().NoError(err)
		s.True(cart.IsEmpty())
	})

	s.Run("removing an absent line is not an error", func() {
		buyerID := id.BuyerID(uuid.New())

		existed, err := s.store.RemoveItem(s.ctx, buyerID, id.ProductID(uuid.New()))
		s.Require().NoError(err)
		s.False(existed)
	})
}

func (s *MemoryStoreSuite) TestRemoveItems() {
	buyerID := id.BuyerID(uuid.New())
	now := time.Now()
	kept := testItem(id.ProductID(uuid.New()), 1, now)
	orderedA := testItem(id.ProductID(uuid.New()), 2, now)
	orderedB := testItem(id.ProductID(uuid.New()), 3, now)

	for _, item := range []models.Item{kept, orderedA, orderedB} {
		s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, item))
	}

	err := s.store.RemoveItems(s.ctx, buyerID, []id.ProductID{orderedA.ProductID, orderedB.ProductID})
	s.Require().NoError(err)

	cart, err := s.store.Get(s.ctx, buyerID)
	s.Require().NoError(err)
	s.Require().Len(cart.Items, 1)
	s.Equal(kept.ProductID, cart.Items[0].ProductID)
}

func (s *MemoryStoreSuite) TestClear() {
	buyerID := id.BuyerID(uuid.New())
	s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, testItem(id.ProductID(uuid.New()), 1, time.Now())))

	s.Require().NoError(s.store.Clear(s.ctx, buyerID))
	s.Require().NoError(s.store.Clear(s.ctx, buyerID)) // idempotent

	cart, err := s.store.Get(s.ctx, buyerID)
	s.Require().NoError(err)
	s.True(cart.IsEmpty())
}

func (s *MemoryStoreSuite) TestConcurrentUpserts() {
	buyerID := id.BuyerID(uuid.New())
	now := time.Now()
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item := testItem(id.ProductID(uuid.New()), 1, now)
			s.Require().NoError(s.store.UpsertItem(s.ctx, buyerID, item))
		}()
	}
	wg.Wait()

	cart, err := s.store.Get(s.ctx, buyerID)
	s.Require().NoError(err)
	s.Len(cart.Items, writers)
}
