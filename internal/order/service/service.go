package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cartmodels "sproutmarket/internal/cart/models"
	cartstore "sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	ordermetrics "sproutmarket/internal/order/metrics"
	"sproutmarket/internal/order/models"
	"sproutmarket/internal/order/store"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/platform/events"
	"sproutmarket/pkg/platform/keylock"
	"sproutmarket/pkg/platform/sentinel"
	"sproutmarket/pkg/requestcontext"
)

// Service is the order lifecycle engine: checkout, status transitions, and
// delivery tracking. It shares the per-buyer lock arena with the cart
// service so checkout holds the buyer's lock for its full duration and no
// cart mutation can interleave.
type Service struct {
	orders  store.Store
	carts   cartstore.Store
	catalog catalog.Catalog
	locks   *keylock.Arena
	events  *events.Publisher
	metrics *ordermetrics.Metrics
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(metrics *ordermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

func WithEvents(publisher *events.Publisher) Option {
	return func(s *Service) { s.events = publisher }
}

// New creates the lifecycle engine. The lock arena must be the same instance
// the cart service uses.
func New(orders store.Store, carts cartstore.Store, cat catalog.Catalog, locks *keylock.Arena, opts ...Option) (*Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("product catalog is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock arena is required")
	}

	svc := &Service{
		orders:  orders,
		carts:   carts,
		catalog: cat,
		locks:   locks,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// FarmFailure reports one farm partition whose order could not be created.
type FarmFailure struct {
	FarmID id.FarmID `json:"farmId"`
	Reason string    `json:"reason"`
}

// CheckoutResult is the per-farm outcome of one checkout. A cart spanning
// several farms yields one order per farm; failures on one farm do not roll
// back orders already created for others.
type CheckoutResult struct {
	Orders   []*models.Order `json:"orders"`
	Failures []FarmFailure   `json:"failures,omitempty"`
}

// Checkout turns the buyer's cart into orders, one per farm. The buyer lock
// is held for the full read-validate-create-clear sequence. Stock is
// re-checked against the catalog; prices are not (frozen-price policy).
func (s *Service) Checkout(ctx context.Context, buyerID id.BuyerID) (*CheckoutResult, error) {
	start := time.Now()
	defer s.metrics.ObserveCheckout(start)

	key := buyerID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	cart, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		s.metrics.IncrementCheckoutFailure("cart_read")
		return nil, translateStoreErr(err, "read cart")
	}
	if cart.IsEmpty() {
		s.metrics.IncrementCheckoutFailure("empty_cart")
		return nil, dErrors.New(dErrors.CodeEmptyCart, "cart is empty")
	}

	if err := s.checkStock(ctx, cart.Items); err != nil {
		s.metrics.IncrementCheckoutFailure("stock")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := &CheckoutResult{}
	var ordered []id.ProductID

	byFarm := lo.GroupBy(cart.Items, func(item cartmodels.Item) id.FarmID { return item.FarmID })
	farmIDs := lo.Keys(byFarm)
	sort.Slice(farmIDs, func(i, j int) bool { return farmIDs[i].String() < farmIDs[j].String() })

	for _, farmID := range farmIDs {
		lines := byFarm[farmID]
		items := lo.Map(lines, func(line cartmodels.Item, _ int) models.Item {
			return models.Item{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
		})

		order, err := models.New(id.OrderID(uuid.New()), buyerID, farmID, items, now)
		if err == nil {
			err = s.orders.Create(ctx, order)
		}
		if err != nil {
			s.logger.Error("checkout failed for farm",
				zap.String("buyer_id", buyerID.String()),
				zap.String("farm_id", farmID.String()),
				zap.Error(err))
			s.metrics.IncrementOrdersCreated("failed")
			result.Failures = append(result.Failures, FarmFailure{
				FarmID: farmID,
				Reason: dErrors.MessageOf(translateStoreErr(err, "create order")),
			})
			continue
		}

		s.metrics.IncrementOrdersCreated("created")
		result.Orders = append(result.Orders, order)
		for _, item := range order.Items {
			ordered = append(ordered, item.ProductID)
		}
		s.emit(ctx, events.Event{
			Type:    events.TypeOrderCreated,
			OrderID: order.ID,
			BuyerID: order.BuyerID,
			FarmID:  order.FarmID,
			ActorID: id.ActorID(buyerID),
			Status:  string(order.Status),
			Total:   order.TotalAmount,
		})
	}

	if len(result.Orders) == 0 {
		return nil, dErrors.New(dErrors.CodeUnavailable, "no order could be created")
	}

	// Only successfully ordered items leave the cart; a failed farm's items
	// stay behind for a retry.
	if len(result.Failures) == 0 {
		err = s.carts.Clear(ctx, buyerID)
	} else {
		err = s.carts.RemoveItems(ctx, buyerID, ordered)
	}
	if err != nil {
		s.logger.Error("cart cleanup after checkout failed",
			zap.String("buyer_id", buyerID.String()),
			zap.Error(err))
	}

	return result, nil
}

// checkStock re-validates availability for every cart line concurrently.
// Any failing line rejects the whole checkout before any order is written.
func (s *Service) checkStock(ctx context.Context, items []cartmodels.Item) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			product, err := s.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Newf(dErrors.CodeInvalidReference, "product %s no longer exists", item.ProductID)
				}
				return translateStoreErr(err, "check product availability")
			}
			if product.AvailableQuantity < item.Quantity {
				return dErrors.Newf(dErrors.CodeInsufficientStock,
					"insufficient stock for product %s: requested %d, available %d",
					item.ProductID, item.Quantity, product.AvailableQuantity)
			}
			return nil
		})
	}
	return g.Wait()
}

// Get returns an order visible to the caller: the owning buyer, the owning
// farm, or an admin.
func (s *Service) Get(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListMine returns the authenticated buyer's orders.
func (s *Service) ListMine(ctx context.Context, filter models.ListFilter) ([]*models.Order, error) {
	actorID := requestcontext.ActorID(ctx)
	if requestcontext.Role(ctx) != id.RoleBuyer {
		return nil, dErrors.New(dErrors.CodeForbidden, "only buyers have their own order list")
	}
	orders, err := s.orders.ListByBuyer(ctx, id.BuyerID(actorID), filter)
	if err != nil {
		return nil, translateStoreErr(err, "list orders")
	}
	return orders, nil
}

// ListForFarm returns a farm's orders. Farmers see only their own farm;
// admins see any.
func (s *Service) ListForFarm(ctx context.Context, farmID id.FarmID, filter models.ListFilter) ([]*models.Order, error) {
	switch requestcontext.Role(ctx) {
	case id.RoleAdmin:
	case id.RoleFarmer:
		if requestcontext.FarmID(ctx) != farmID {
			return nil, dErrors.New(dErrors.CodeForbidden, "farmers may only list their own farm's orders")
		}
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "buyer accounts cannot list farm orders")
	}
	orders, err := s.orders.ListByFarm(ctx, farmID, filter)
	if err != nil {
		return nil, translateStoreErr(err, "list farm orders")
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. The store's conditional
// update arbitrates concurrent transitions: the loser gets Conflict and must
// re-fetch before retrying.
func (s *Service) UpdateStatus(ctx context.Context, orderID id.OrderID, next models.Status) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(ctx, order, next); err != nil {
		return nil, err
	}
	if err := order.Status.ValidateTransition(next); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	actorID := requestcontext.ActorID(ctx)
	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, next, actorID, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "order status changed concurrently; re-fetch and retry")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Newf(dErrors.CodeNotFound, "order %s not found", orderID)
		default:
			return nil, translateStoreErr(err, "update order status")
		}
	}

	s.metrics.IncrementTransition(string(next))
	s.emit(ctx, events.Event{
		Type:    events.TypeOrderStatusChanged,
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		FarmID:  order.FarmID,
		ActorID: actorID,
		Status:  string(next),
	})

	return s.loadOrder(ctx, orderID)
}

// TrackingInput is the caller-supplied part of a tracking event.
type TrackingInput struct {
	Location         string
	Description      string
	EstimatedArrival *time.Time
}

// AddTracking appends a delivery tracking event to an in-flight order. Only
// the owning farm or an admin may do so, and only while the order's status
// allows tracking.
func (s *Service) AddTracking(ctx context.Context, orderID id.OrderID, input TrackingInput) (*models.Order, error) {
	if input.Description == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tracking description is required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeFarmAction(ctx, order); err != nil {
		return nil, err
	}

	event := models.TrackingEvent{
		Location:         input.Location,
		Description:      input.Description,
		EstimatedArrival: input.EstimatedArrival,
		ActorID:          requestcontext.ActorID(ctx),
		CreatedAt:        requestcontext.Now(ctx),
	}
	if err := s.orders.AddTracking(ctx, orderID, event); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Newf(dErrors.CodeInvalidState, "order %s does not accept tracking in its current status", orderID)
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Newf(dErrors.CodeNotFound, "order %s not found", orderID)
		default:
			return nil, translateStoreErr(err, "add tracking event")
		}
	}

	s.metrics.IncrementTracking()
	s.emit(ctx, events.Event{
		Type:    events.TypeTrackingAdded,
		OrderID: order.ID,
		BuyerID: order.BuyerID,
		FarmID:  order.FarmID,
		ActorID: event.ActorID,
	})

	return s.loadOrder(ctx, orderID)
}

func (s *Service) loadOrder(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "order %s not found", orderID)
		}
		return nil, translateStoreErr(err, "load order")
	}
	return order, nil
}

// emit publishes a domain event. Event delivery failure never fails the
// operation that caused it.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.Warn("event emit failed",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
	}
}

func authorizeView(ctx context.Context, order *models.Order) error {
	actorID := requestcontext.ActorID(ctx)
	switch requestcontext.Role(ctx) {
	case id.RoleAdmin:
		return nil
	case id.RoleBuyer:
		if id.BuyerID(actorID) == order.BuyerID {
			return nil
		}
	case id.RoleFarmer:
		if requestcontext.FarmID(ctx) == order.FarmID {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "order does not belong to you")
}

// authorizeTransition enforces who may move an order: the owning farm and
// admins may perform any legal transition; the owning buyer may only cancel.
func authorizeTransition(ctx context.Context, order *models.Order, next models.Status) error {
	actorID := requestcontext.ActorID(ctx)
	switch requestcontext.Role(ctx) {
	case id.RoleAdmin:
		return nil
	case id.RoleFarmer:
		if requestcontext.FarmID(ctx) == order.FarmID {
			return nil
		}
	case id.RoleBuyer:
		if id.BuyerID(actorID) == order.BuyerID && next == models.StatusCancelled {
			return nil
		}
		if id.BuyerID(actorID) == order.BuyerID {
			return dErrors.New(dErrors.CodeForbidden, "buyers may only cancel their orders")
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "order does not belong to you")
}

func authorizeFarmAction(ctx context.Context, order *models.Order) error {
	switch requestcontext.Role(ctx) {
	case id.RoleAdmin:
		return nil
	case id.RoleFarmer:
		if requestcontext.FarmID(ctx) == order.FarmID {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "only the fulfilling farm may add tracking")
}

// translateStoreErr converts sentinel infrastructure errors into the stable
// taxonomy.
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
