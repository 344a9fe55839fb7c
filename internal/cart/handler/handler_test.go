package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sproutmarket/internal/cart/service"
	"sproutmarket/internal/cart/store"
	"sproutmarket/internal/catalog"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/keylock"
	"sproutmarket/pkg/requestcontext"
)

type cartFixture struct {
	router    http.Handler
	catalog   *catalog.MemoryCatalog
	actorID   id.ActorID
	actorRole id.Role
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	cat := catalog.NewMemoryCatalog()
	svc, err := service.New(store.NewMemory(), cat, keylock.New())
	require.NoError(t, err)

	f := &cartFixture{
		catalog:   cat,
		actorID:   id.ActorID(uuid.New()),
		actorRole: id.RoleBuyer,
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), f.actorID, f.actorRole, id.FarmID{})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, nil).Register(r)
	f.router = r
	return f
}

func (f *cartFixture) seedProduct(t *testing.T, price int64) id.ProductID {
	t.Helper()
	productID := id.ProductID(uuid.New())
	f.catalog.Put(catalog.Product{
		ID:                productID,
		FarmID:            id.FarmID(uuid.New()),
		UnitPrice:         decimal.NewFromInt(price),
		AvailableQuantity: 100,
	})
	return productID
}

func (f *cartFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
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

type cartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Items []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
			UnitPrice string `json:"unitPrice"`
		} `json:"items"`
	} `json:"data"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestAddItemEndpoint(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 750)

	rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
		"productId": productID.String(),
		"quantity":  2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCart(t, rec)
	require.True(t, resp.Success)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, productID.String(), resp.Data.Items[0].ProductID)
	require.Equal(t, 2, resp.Data.Items[0].Quantity)
}

func TestAddItemMergesOnRepeat(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 500)

	for _, qty := range []int{2, 3} {
		rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
			"productId": productID.String(),
			"quantity":  qty,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/cart", nil)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, 5, resp.Data.Items[0].Quantity)
}

func TestAddItemValidation(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 500)

	t.Run("zero quantity", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
			"productId": productID.String(),
			"quantity":  0,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeCart(t, rec)
		require.False(t, resp.Success)
		require.NotEmpty(t, resp.Message)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
			"productId": uuid.New().String(),
			"quantity":  1,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed product id", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
			"productId": "not-a-uuid",
			"quantity":  1,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateItemEndpoint(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 500)

	rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
		"productId": productID.String(),
		"quantity":  5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("sets quantity", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/cart/items/"+productID.String(), map[string]any{"quantity": 2})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeCart(t, rec)
		require.Equal(t, 2, resp.Data.Items[0].Quantity)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/cart/items/"+productID.String(), map[string]any{"quantity": 0})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeCart(t, rec)
		require.Empty(t, resp.Data.Items)
	})

	t.Run("absent line is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/cart/items/"+uuid.New().String(), map[string]any{"quantity": 2})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRemoveItemEndpoint(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 500)

	rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
		"productId": productID.String(),
		"quantity":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/cart/items/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Empty(t, resp.Data.Items)

	// idempotent
	rec = f.do(t, http.MethodDelete, "/cart/items/"+productID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClearCartEndpoint(t *testing.T) {
	f := newCartFixture(t)
	productID := f.seedProduct(t, 500)

	rec := f.do(t, http.MethodPost, "/cart/items", map[string]any{
		"productId": productID.String(),
		"quantity":  1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/cart", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/cart", nil)
	resp := decodeCart(t, rec)
	require.Empty(t, resp.Data.Items)
}

func TestCartRequiresBuyerRole(t *testing.T) {
	f := newCartFixture(t)
	f.actorRole = id.RoleFarmer

	rec := f.do(t, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
