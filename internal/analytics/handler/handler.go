package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sproutmarket/internal/analytics/models"
	"sproutmarket/internal/platform/logger"
	"sproutmarket/internal/transport/http/shared"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/requestcontext"
)

// Service defines the analytics views the handler exposes.
type Service interface {
	OrdersReport(ctx context.Context, query models.Query) (*models.OrdersReport, error)
	DemandForecast(ctx context.Context, query models.Query, productID *id.ProductID) ([]models.ProductForecast, error)
	SeasonalTrends(ctx context.Context, query models.Query) ([]models.SeasonalPoint, error)
	FarmerReport(ctx context.Context, farmID id.FarmID, window models.Window) (*models.FarmerReport, error)
}

// Handler exposes the analytics read side. Farmers are always scoped to
// their own farm; admins may query any farm; buyers have no analytics
// access.
type Handler struct {
	analytics Service
	logger    *zap.Logger
}

func New(analytics Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{analytics: analytics, logger: log}
}

// Register mounts the analytics routes. Callers apply auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/orders", h.handleOrdersReport)
		r.Get("/demand-forecast", h.handleDemandForecast)
		r.Get("/seasonal-trends", h.handleSeasonalTrends)
		r.Get("/farmer", h.handleFarmerReport)
	})
}

func (h *Handler) handleOrdersReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query, err := h.queryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	report, err := h.analytics.OrdersReport(ctx, query)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("orders report failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDemandForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query, err := h.queryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var productID *id.ProductID
	if raw := r.URL.Query().Get("productId"); raw != "" {
		parsed, err := id.ParseProductID(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
			return
		}
		productID = &parsed
	}

	forecasts, err := h.analytics.DemandForecast(ctx, query, productID)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("demand forecast failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, forecasts)
}

func (h *Handler) handleSeasonalTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query, err := h.queryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	trends, err := h.analytics.SeasonalTrends(ctx, query)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("seasonal trends failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, trends)
}

func (h *Handler) handleFarmerReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window, err := windowFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var farmID id.FarmID
	switch requestcontext.Role(ctx) {
	case id.RoleFarmer:
		farmID = requestcontext.FarmID(ctx)
	case id.RoleAdmin:
		raw := r.URL.Query().Get("farmId")
		if raw == "" {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "farmId is required"))
			return
		}
		if farmID, err = id.ParseFarmID(raw); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid farm id"))
			return
		}
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "analytics are for farms and admins"))
		return
	}

	report, err := h.analytics.FarmerReport(ctx, farmID, window)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("farmer report failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

// queryFromRequest builds a query from the common parameters, enforcing the
// role scoping rules.
func (h *Handler) queryFromRequest(r *http.Request) (models.Query, error) {
	ctx := r.Context()
	window, err := windowFromRequest(r)
	if err != nil {
		return models.Query{}, err
	}

	query := models.Query{
		Window:      window,
		Granularity: models.Granularity(r.URL.Query().Get("granularity")),
	}

	switch requestcontext.Role(ctx) {
	case id.RoleFarmer:
		farmID := requestcontext.FarmID(ctx)
		query.FarmID = &farmID
	case id.RoleAdmin:
		if raw := r.URL.Query().Get("farmId"); raw != "" {
			farmID, err := id.ParseFarmID(raw)
			if err != nil {
				return models.Query{}, dErrors.New(dErrors.CodeBadRequest, "invalid farm id")
			}
			query.FarmID = &farmID
		}
		if raw := r.URL.Query().Get("buyerId"); raw != "" {
			buyerID, err := id.ParseBuyerID(raw)
			if err != nil {
				return models.Query{}, dErrors.New(dErrors.CodeBadRequest, "invalid buyer id")
			}
			query.BuyerID = &buyerID
		}
	default:
		return models.Query{}, dErrors.New(dErrors.CodeForbidden, "analytics are for farms and admins")
	}
	return query, nil
}

// windowFromRequest parses from/to, defaulting to the trailing 90 days.
func windowFromRequest(r *http.Request) (models.Window, error) {
	now := requestcontext.Now(r.Context())
	window := models.Window{From: now.AddDate(0, 0, -90), To: now}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := parseTimeParam(raw)
		if err != nil {
			return models.Window{}, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp")
		}
		window.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := parseTimeParam(raw)
		if err != nil {
			return models.Window{}, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp")
		}
		window.To = to
	}
	return window, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
