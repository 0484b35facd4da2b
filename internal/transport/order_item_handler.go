package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderItemHandler exposes read access to order item snapshots. Items are
// written only by order placement.
type OrderItemHandler struct {
	handlerBase
	orders service.OrderService
}

// NewOrderItemHandler creates a new OrderItemHandler
func NewOrderItemHandler(orders service.OrderService, logger *zap.Logger) *OrderItemHandler {
	return &OrderItemHandler{handlerBase: handlerBase{logger: logger}, orders: orders}
}

// RegisterRoutes registers the order item routes
func (h *OrderItemHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orderItems", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{user_id}/{order_id}", h.ListForUserOrder)
	})
}

func (h *OrderItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.orders.AllItems(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}

func (h *OrderItemHandler) ListForUserOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	orderID, err := pathID(r, "order_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.orders.UserOrderItems(r.Context(), userID, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}
