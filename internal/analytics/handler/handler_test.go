package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sproutmarket/internal/analytics/service"
	"sproutmarket/internal/analytics/store"
	ordermodels "sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/requestcontext"
)

type analyticsFixture struct {
	router http.Handler
	source *store.MemorySource
	farmID id.FarmID

	actorRole id.Role
	actorFarm id.FarmID
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()

	f := &analyticsFixture{
		source: store.NewMemory(),
		farmID: id.FarmID(uuid.New()),
	}
	f.actorRole = id.RoleFarmer
	f.actorFarm = f.farmID

	svc, err := service.New(f.source)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), id.ActorID(uuid.New()), f.actorRole, f.actorFarm)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, nil).Register(r)
	f.router = r
	return f
}

func (f *analyticsFixture) seedOrder(t *testing.T, quantity int, status ordermodels.Status, createdAt time.Time) {
	t.Helper()
	order, err := ordermodels.New(
		id.OrderID(uuid.New()), id.BuyerID(uuid.New()), f.farmID,
		[]ordermodels.Item{{ProductID: id.ProductID(uuid.New()), Quantity: quantity, UnitPrice: decimal.NewFromInt(500)}},
		createdAt,
	)
	require.NoError(t, err)
	order.Status = status
	f.source.Add(order)
}

func (f *analyticsFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestOrdersReportEndpoint(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedOrder(t, 2, ordermodels.StatusPending, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	rec := f.get(t, "/analytics/orders?from=2026-01-01&to=2026-12-31&granularity=day")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			TotalOrders int `json:"totalOrders"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Data.TotalOrders)
}

func TestOrdersReportRejectsBadWindow(t *testing.T) {
	f := newAnalyticsFixture(t)

	rec := f.get(t, "/analytics/orders?from=not-a-date")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/analytics/orders?granularity=hourly")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemandForecastEndpoint(t *testing.T) {
	f := newAnalyticsFixture(t)
	for i, quantity := range []int{10, 20, 30} {
		f.seedOrder(t, quantity, ordermodels.StatusDelivered, time.Date(2026, time.Month(2+i), 10, 0, 0, 0, 0, time.UTC))
	}

	rec := f.get(t, "/analytics/demand-forecast?from=2026-01-01&to=2026-12-31&granularity=month")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []struct {
			Forecast string `json:"forecast"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 3, "one forecast per product")
}

func TestSeasonalTrendsEndpoint(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedOrder(t, 2, ordermodels.StatusDelivered, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	rec := f.get(t, "/analytics/seasonal-trends?from=2026-01-01&to=2026-12-31")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFarmerReportEndpoint(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.seedOrder(t, 2, ordermodels.StatusDelivered, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	rec := f.get(t, "/analytics/farmer?from=2026-01-01&to=2026-12-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			FarmID      string `json:"farmId"`
			TotalOrders int    `json:"totalOrders"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, f.farmID.String(), resp.Data.FarmID)
	require.Equal(t, 1, resp.Data.TotalOrders)
}

func TestAnalyticsForbiddenForBuyers(t *testing.T) {
	f := newAnalyticsFixture(t)
	f.actorRole = id.RoleBuyer
	f.actorFarm = id.FarmID{}

	for _, path := range []string{
		"/analytics/orders",
		"/analytics/demand-forecast",
		"/analytics/seasonal-trends",
		"/analytics/farmer",
	} {
		rec := f.get(t, path)
		require.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}
