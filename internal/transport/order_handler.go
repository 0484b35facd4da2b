package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PlaceOrderRequest converts a user's cart into an order. cart_id limits
// placement to a single cart line.
type PlaceOrderRequest struct {
	UserID        FlexInt  `json:"user_id" validate:"required,gt=0"`
	PaymentMethod string   `json:"payment_method" validate:"required,max=50"`
	CartID        *FlexInt `json:"cart_id" validate:"omitempty,gt=0"`
}

// PlaceOrderResponse reports the committed order and the confirmation email outcome
type PlaceOrderResponse struct {
	Message   string              `json:"message"`
	Order     *domain.Order       `json:"order"`
	Items     []*domain.OrderItem `json:"items"`
	EmailID   string              `json:"emailId"`
	EmailSent bool                `json:"email_sent"`
}

// ConfirmationResponse reports a re-sent confirmation email
type ConfirmationResponse struct {
	Message   string `json:"message"`
	EmailID   string `json:"emailId"`
	EmailSent bool   `json:"email_sent"`
}

// OrderDetailResponse is an order with its items
type OrderDetailResponse struct {
	Order *domain.Order       `json:"order"`
	Items []*domain.OrderItem `json:"items"`
}

// UpdateOrderRequest changes the administrative fields of an order
type UpdateOrderRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,max=50"`
}

// OrderHandler handles order placement and order administration
type OrderHandler struct {
	handlerBase
	orders service.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{handlerBase: handlerBase{logger: logger}, orders: orders}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/place", h.Place)
		r.Get("/user/{user_id}", h.ListByUser)
		r.Get("/history/{user_id}", h.ListByUser)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/items", h.Items)
		r.Post("/{id}/email", h.ResendConfirmation)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Place converts the user's cart into an order
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	input := service.PlaceOrderInput{
		UserID:        req.UserID.Int64(),
		PaymentMethod: req.PaymentMethod,
	}
	if req.CartID != nil {
		cartID := req.CartID.Int64()
		input.CartID = &cartID
	}

	result, err := h.orders.PlaceOrder(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	message := "Order placed successfully"
	if !result.EmailSent {
		message = "Order placed successfully; confirmation email will be retried"
	}
	middleware.RespondWithJSON(w, http.StatusOK, PlaceOrderResponse{
		Message:   message,
		Order:     result.Order,
		Items:     result.Items,
		EmailID:   result.EmailID,
		EmailSent: result.EmailSent,
	})
}

// ResendConfirmation sends the order confirmation email again
func (h *OrderHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	confirmation, err := h.orders.ResendConfirmation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	message := "Email sent successfully"
	if !confirmation.EmailSent {
		message = "Email queued for retry"
	}
	middleware.RespondWithJSON(w, http.StatusOK, ConfirmationResponse{
		Message:   message,
		EmailID:   confirmation.EmailID,
		EmailSent: confirmation.EmailSent,
	})
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.orders.Items(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, OrderDetailResponse{Order: order, Items: items})
}

func (h *OrderHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.orders.Items(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	patch := domain.OrderPatch{PaymentMethod: req.PaymentMethod}
	if req.Status != nil {
		status := domain.OrderStatus(*req.Status)
		patch.Status = &status
	}

	order, err := h.orders.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
