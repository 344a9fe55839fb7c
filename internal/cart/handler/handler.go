package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sproutmarket/internal/cart/models"
	"sproutmarket/internal/platform/logger"
	"sproutmarket/internal/transport/http/shared"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/requestcontext"
)

// Service defines the cart operations the handler exposes.
type Service interface {
	AddItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID, quantity int) (models.Cart, error)
	UpdateItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID, quantity int) (models.Cart, error)
	RemoveItem(ctx context.Context, buyerID id.BuyerID, productID id.ProductID) (models.Cart, error)
	Get(ctx context.Context, buyerID id.BuyerID) (models.Cart, error)
	Clear(ctx context.Context, buyerID id.BuyerID) error
}

// Handler exposes the authenticated buyer's cart over HTTP.
type Handler struct {
	carts  Service
	logger *zap.Logger
}

func New(carts Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{carts: carts, logger: log}
}

// Register mounts the cart routes. Callers apply auth middleware; every
// route here assumes an authenticated actor in the request context.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.handleGetCart)
		r.Delete("/", h.handleClearCart)
		r.Post("/items", h.handleAddItem)
		r.Put("/items/{productID}", h.handleUpdateItem)
		r.Delete("/items/{productID}", h.handleRemoveItem)
	})
}

// buyerID resolves the cart owner from the authenticated actor. Only buyers
// own carts.
func buyerID(ctx context.Context) (id.BuyerID, error) {
	if requestcontext.Role(ctx) != id.RoleBuyer {
		return id.BuyerID{}, dErrors.New(dErrors.CodeForbidden, "only buyers have carts")
	}
	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		return id.BuyerID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return id.BuyerID(actorID), nil
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := buyerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cart, err := h.carts.Get(ctx, owner)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("get cart failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := buyerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.carts.Clear(ctx, owner); err != nil {
		logger.WithRequest(ctx, h.logger).Error("clear cart failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := buyerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	productID, err := id.ParseProductID(req.ProductID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	cart, err := h.carts.AddItem(ctx, owner, productID, req.Quantity)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Warn("add cart item rejected",
			zap.String("product_id", req.ProductID),
			zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := buyerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cart, err := h.carts.UpdateItem(ctx, owner, productID, req.Quantity)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Warn("update cart item rejected",
			zap.String("product_id", productID.String()),
			zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cart)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := buyerID(ctx)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, owner, productID)
	if err != nil {
		logger.WithRequest(ctx, h.logger).Error("remove cart item failed", zap.Error(err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cart)
}
