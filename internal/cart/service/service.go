package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	cartmetrics "sproutmarket/internal/cart/metrics"
	"sproutmarket/internal/cart/models"
	"sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/platform/keylock"
	"sproutmarket/pkg/platform/sentinel"
	"sproutmarket/pkg/requestcontext"
)

// Service owns cart mutation semantics: merge-on-add, absolute updates,
// idempotent removal. Every mutation runs under the buyer's keyed lock so
// concurrent requests for one buyer cannot lose updates; distinct buyers
// never contend.
type Service struct {
	store   store.Store
	catalog catalog.Catalog
	locks   *keylock.Arena
	metrics *cartmetrics.Metrics
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics *cartmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// New creates a cart service. The lock arena is shared with the order
// lifecycle engine so checkout holds the same per-buyer lock.
func New(st store.Store, cat catalog.Catalog, locks *keylock.Arena, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("product catalog is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock arena is required")
	}

	svc := &Service{
		store:   st,
		catalog: cat,
		locks:   locks,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AddItem merges quantity into an existing line or creates one. The unit
// price snapshot is taken from the catalog on first add and kept on merges.
func (s *Service) AddItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID, quantity int) (models.Cart, error) {
	if quantity <= 0 {
		return models.Cart{}, dErrors.New(dErrors.CodeInvalidQuantity, "quantity must be a positive integer")
	}

	start := time.Now()
	defer s.metrics.ObserveMutation(start)

	key := buyerID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cart, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return models.Cart{}, translateStoreErr(err, "read cart")
	}

	now := requestcontext.Now(ctx)
	item, exists := cart.Find(productID)
	if exists {
		item.Quantity += quantity
		item.UpdatedAt = now
	} else {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.Cart{}, dErrors.Newf(dErrors.CodeInvalidReference, "product %s does not exist", productID)
			}
			return models.Cart{}, translateStoreErr(err, "resolve product")
		}
		item = models.Item{
			ProductID: productID,
			FarmID:    product.FarmID,
			Quantity:  quantity,
			UnitPrice: product.UnitPrice,
			AddedAt:   now,
			UpdatedAt: now,
		}
	}

	if err := s.store.UpsertItem(ctx, buyerID, item); err != nil {
		return models.Cart{}, translateStoreErr(err, "write cart item")
	}

	s.metrics.IncrementMutation("add")
	return s.reread(ctx, buyerID)
}

// UpdateItem sets an absolute quantity. Zero removes the line; an absent
// line is an error, unlike RemoveItem.
func (s *Service) UpdateItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID, quantity int) (models.Cart, error) {
	if quantity < 0 {
		return models.Cart{}, dErrors.New(dErrors.CodeInvalidQuantity, "quantity must not be negative")
	}

	start := time.Now()
	defer s.metrics.ObserveMutation(start)

	key := buyerID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cart, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return models.Cart{}, translateStoreErr(err, "read cart")
	}

	item, exists := cart.Find(productID)
	if !exists {
		return models.Cart{}, dErrors.Newf(dErrors.CodeItemNotFound, "product %s is not in the cart", productID)
	}

	if quantity == 0 {
		if _, err := s.store.RemoveItem(ctx, buyerID, productID); err != nil {
			return models.Cart{}, translateStoreErr(err, "remove cart item")
		}
	} else {
		item.Quantity = quantity
		item.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.UpsertItem(ctx, buyerID, item); err != nil {
			return models.Cart{}, translateStoreErr(err, "write cart item")
		}
	}

	s.metrics.IncrementMutation("update")
	return s.reread(ctx, buyerID)
}

// RemoveItem deletes a line. Removing an absent line succeeds silently.
func (s *Service) RemoveItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID) (models.Cart, error) {
	start := time.Now()
	defer s.metrics.ObserveMutation(start)

	key := buyerID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if _, err := s.store.RemoveItem(ctx, buyerID, productID); err != nil {
		return models.Cart{}, translateStoreErr(err, "remove cart item")
	}

	s.metrics.IncrementMutation("remove")
	return s.reread(ctx, buyerID)
}

func (s *Service) reread(ctx context.Context, buyerID id.BuyerID) (models.Cart, error) {
	cart, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return models.Cart{}, translateStoreErr(err, "read cart")
	}
	return cart, nil
}

// Get returns the buyer's cart; an empty cart when none exists, never an
// error for absence.
func (s *Service) Get(ctx context.Context, buyerID id.BuyerID) (models.Cart, error) {
	cart, err := s.store.Get(ctx, buyerID)
	if err != nil {
		return models.Cart{}, translateStoreErr(err, "read cart")
	}
	return cart, nil
}

// Clear removes the cart entirely. Idempotent.
func (s *Service) Clear(ctx context.Context, buyerID id.BuyerID) error {
	start := time.Now()
	defer s.metrics.ObserveMutation(start)

	key := buyerID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := s.store.Clear(ctx, buyerID); err != nil {
		return translateStoreErr(err, "clear cart")
	}

	s.metrics.IncrementMutation("clear")
	return nil
}

// translateStoreErr converts sentinel infrastructure errors into the stable
// taxonomy. Callers never see driver detail.
func translateStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, op+" timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op+" failed: store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}
