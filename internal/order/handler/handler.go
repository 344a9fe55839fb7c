package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sproutmarket/internal/order/models"
	"sproutmarket/internal/order/service"
	"sproutmarket/internal/platform/logger"
	"sproutmarket/internal/transport/http/shared"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/requestcontext"
)

// Service defines the order operations the handler exposes.
type Service interface {
	Checkout(ctx context.Context, buyerID id.BuyerID) (*service.CheckoutResult, error)
	Get(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	ListMine(ctx context.Context, filter models.ListFilter) ([]*models.Order, error)
	ListForFarm(ctx context.Context, farmID id.FarmID, filter models.ListFilter) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID id.OrderID, next models.Status) (*models.Order, error)
	AddTracking(ctx context.Context, orderID id.OrderID, input service.TrackingInput) (*models.Order, error)
}

// Handler exposes order lifecycle endpoints.
type Handler struct {
	orders Service
	logger *zap.Logger
}

func New(orders Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{orders: orders, logger: log}
}

// Register mounts the order routes. Callers apply auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleCheckout)
		r.Get("/", h.handleListMine)
		r.Get("/farm/{farmID}", h.handleListForFarm)
		r.Get("/{orderID}", h.handleGetOrder)
		r.Patch("/{orderID}/status", h.handleUpdateStatus)
		r.Post("/{orderID}/tracking", h.handleAddTracking)
	})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.Role(ctx) != id.RoleBuyer {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only buyers may check out"))
		return
	}
	buyer := id.BuyerID(requestcontext.ActorID(ctx))

	result, err := h.orders.Checkout(ctx, buyer)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Warn("checkout rejected",
			zap.String("buyer_id", buyer.String()),
			zap.Error(err))
		shared.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Failures) > 0 {
		// Partial success: some farm partitions failed, the rest went through.
		status = http.StatusMultiStatus
	}
	shared.WriteJSON(w, status, result)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid order id"))
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseListFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	orders, err := h.orders.ListMine(ctx, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleListForFarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmID, err := id.ParseFarmID(chi.URLParam(r, "farmID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid farm id"))
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	orders, err := h.orders.ListForFarm(ctx, farmID, filter)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid order id"))
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, models.Status(req.Status))
	if err != nil {
		logger.WithRequest(ctx, h.logger).Warn("status transition rejected",
			zap.String("order_id", orderID.String()),
			zap.String("to", req.Status),
			zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) handleAddTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid order id"))
		return
	}

	var req addTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	order, err := h.orders.AddTracking(ctx, orderID, service.TrackingInput{
		Location:         req.Location,
		Description:      req.Description,
		EstimatedArrival: req.EstimatedArrival,
	})
	if err != nil {
		logger.WithRequest(ctx, h.logger).Warn("tracking rejected",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, order)
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	filter := models.ListFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			return filter, dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", raw)
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}
