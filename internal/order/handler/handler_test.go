package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cartmodels "sproutmarket/internal/cart/models"
	cartstore "sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	"sproutmarket/internal/order/models"
	"sproutmarket/internal/order/service"
	orderstore "sproutmarket/internal/order/store"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/keylock"
	"sproutmarket/pkg/platform/sentinel"
	"sproutmarket/pkg/requestcontext"
)

type orderFixture struct {
	router  http.Handler
	carts   *cartstore.MemoryStore
	catalog *catalog.MemoryCatalog

	buyerID id.BuyerID
	farmID  id.FarmID

	// identity injected into each request
	actorID   id.ActorID
	actorRole id.Role
	actorFarm id.FarmID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	return newOrderFixtureWithStore(t, orderstore.NewMemory())
}

func newOrderFixtureWithStore(t *testing.T, orders orderstore.Store) *orderFixture {
	t.Helper()

	f := &orderFixture{
		carts:   cartstore.NewMemory(),
		catalog: catalog.NewMemoryCatalog(),
		buyerID: id.BuyerID(uuid.New()),
		farmID:  id.FarmID(uuid.New()),
	}
	f.asBuyer()

	svc, err := service.New(orders, f.carts, f.catalog, keylock.New())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), f.actorID, f.actorRole, f.actorFarm)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, nil).Register(r)
	f.router = r
	return f
}

func (f *orderFixture) asBuyer() {
	f.actorID = id.ActorID(f.buyerID)
	f.actorRole = id.RoleBuyer
	f.actorFarm = id.FarmID{}
}

func (f *orderFixture) asFarmer() {
	f.actorID = id.ActorID(uuid.New())
	f.actorRole = id.RoleFarmer
	f.actorFarm = f.farmID
}

func (f *orderFixture) seedCartItem(t *testing.T, quantity int) id.ProductID {
	t.Helper()
	productID := id.ProductID(uuid.New())
	f.catalog.Put(catalog.Product{
		ID:                productID,
		FarmID:            f.farmID,
		UnitPrice:         decimal.NewFromInt(500),
		AvailableQuantity: 100,
	})
	now := time.Now()
	require.NoError(t, f.carts.UpsertItem(t.Context(), f.buyerID, cartmodels.Item{
		ProductID: productID,
		FarmID:    f.farmID,
		Quantity:  quantity,
		UnitPrice: decimal.NewFromInt(500),
		AddedAt:   now,
		UpdatedAt: now,
	}))
	return productID
}

func (f *orderFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type orderJSON struct {
	ID          string `json:"id"`
	FarmID      string `json:"farmId"`
	Status      string `json:"status"`
	TotalAmount string `json:"totalAmount"`
	Items       []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Tracking []struct {
		Location string `json:"location"`
	} `json:"tracking"`
}

func (f *orderFixture) checkout(t *testing.T) orderJSON {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/orders", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Orders []orderJSON `json:"orders"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data.Orders, 1)
	return resp.Data.Orders[0]
}

func TestCheckoutEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	productID := f.seedCartItem(t, 5)

	order := f.checkout(t)
	require.Equal(t, "pending", order.Status)
	require.Len(t, order.Items, 1)
	require.Equal(t, productID.String(), order.Items[0].ProductID)
	require.Equal(t, "2500", order.TotalAmount)
}

// failingFarmStore rejects Create for one farm so a multi-farm checkout
// lands in the partial-success path.
type failingFarmStore struct {
	orderstore.Store
	failFarm id.FarmID
}

func (f *failingFarmStore) Create(ctx context.Context, order *models.Order) error {
	if order.FarmID == f.failFarm {
		return fmt.Errorf("create order: %w", sentinel.ErrUnavailable)
	}
	return f.Store.Create(ctx, order)
}

func TestCheckoutPartialFailure(t *testing.T) {
	otherFarm := id.FarmID(uuid.New())
	f := newOrderFixtureWithStore(t, &failingFarmStore{
		Store:    orderstore.NewMemory(),
		failFarm: otherFarm,
	})
	f.seedCartItem(t, 2)

	// second line belongs to the farm whose order creation will fail
	failedProduct := id.ProductID(uuid.New())
	f.catalog.Put(catalog.Product{
		ID:                failedProduct,
		FarmID:            otherFarm,
		UnitPrice:         decimal.NewFromInt(300),
		AvailableQuantity: 100,
	})
	now := time.Now()
	require.NoError(t, f.carts.UpsertItem(t.Context(), f.buyerID, cartmodels.Item{
		ProductID: failedProduct,
		FarmID:    otherFarm,
		Quantity:  3,
		UnitPrice: decimal.NewFromInt(300),
		AddedAt:   now,
		UpdatedAt: now,
	}))

	rec := f.do(t, http.MethodPost, "/orders", nil)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Orders   []orderJSON `json:"orders"`
			Failures []struct {
				FarmID string `json:"farmId"`
				Reason string `json:"reason"`
			} `json:"failures"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Data.Orders, 1)
	require.Equal(t, f.farmID.String(), resp.Data.Orders[0].FarmID)
	require.Len(t, resp.Data.Failures, 1)
	require.Equal(t, otherFarm.String(), resp.Data.Failures[0].FarmID)
	require.NotEmpty(t, resp.Data.Failures[0].Reason)

	cart, err := f.carts.Get(t.Context(), f.buyerID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "failed farm's line stays in the cart")
	require.Equal(t, failedProduct, cart.Items[0].ProductID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newOrderFixture(t)

	rec := f.do(t, http.MethodPost, "/orders", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutRequiresBuyer(t *testing.T) {
	f := newOrderFixture(t)
	f.asFarmer()

	rec := f.do(t, http.MethodPost, "/orders", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCartItem(t, 2)
	order := f.checkout(t)

	rec := f.do(t, http.MethodGet, "/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/orders/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMineEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCartItem(t, 2)
	f.checkout(t)

	rec := f.do(t, http.MethodGet, "/orders?status=pending&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []orderJSON `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)

	rec = f.do(t, http.MethodGet, "/orders?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListForFarmEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCartItem(t, 2)
	f.checkout(t)

	f.asFarmer()
	rec := f.do(t, http.MethodGet, "/orders/farm/"+f.farmID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []orderJSON `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)

	// foreign farm forbidden
	rec = f.do(t, http.MethodGet, "/orders/farm/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCartItem(t, 2)
	order := f.checkout(t)

	f.asFarmer()
	rec := f.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data orderJSON `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "confirmed", resp.Data.Status)

	// illegal jump
	rec = f.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAddTrackingEndpoint(t *testing.T) {
	f := newOrderFixture(t)
	f.seedCartItem(t, 2)
	order := f.checkout(t)

	f.asFarmer()
	rec := f.do(t, http.MethodPatch, "/orders/"+order.ID+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/orders/"+order.ID+"/tracking", map[string]string{
		"location":    "Ziguinchor depot",
		"description": "crates on the truck",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data orderJSON `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data.Tracking, 1)
	require.Equal(t, "Ziguinchor depot", resp.Data.Tracking[0].Location)
}
