package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddToCartRequest adds quantity of a product to a user's cart
type AddToCartRequest struct {
	UserID    FlexInt `json:"user_id" validate:"required,gt=0"`
	ProductID FlexInt `json:"product_id" validate:"required,gt=0"`
	Quantity  FlexInt `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartRequest sets the absolute quantity of a cart line
type UpdateCartRequest struct {
	Quantity FlexInt `json:"quantity" validate:"required,gt=0"`
}

// CartLineResponse acknowledges a cart change
type CartLineResponse struct {
	Message string           `json:"message"`
	Item    *domain.CartLine `json:"item"`
}

// CartHandler handles cart requests
type CartHandler struct {
	handlerBase
	cart service.CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cart service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{handlerBase: handlerBase{logger: logger}, cart: cart}
}

// RegisterRoutes registers the cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Post("/", h.Add)
		r.Delete("/clear/{user_id}", h.Clear)
		r.Get("/{user_id}", h.List)
		r.Put("/{user_id}/{product_id}", h.UpdateQuantity)
		r.Delete("/{user_id}/{product_id}", h.Remove)
	})
}

// Add merges quantity into the user's line for the product
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	line, err := h.cart.AddItem(r.Context(), req.UserID.Int64(), req.ProductID.Int64(), int(req.Quantity))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, CartLineResponse{Message: "Item added to cart", Item: line})
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.cart.ListItems(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, items)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, productID, err := cartLineKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdateCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	line, err := h.cart.UpdateQuantity(r.Context(), userID, productID, int(req.Quantity))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, CartLineResponse{Message: "Cart updated", Item: line})
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, productID, err := cartLineKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.cart.RemoveItem(r.Context(), userID, productID); err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item removed from cart"})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.cart.Clear(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Cart cleared"})
}

func cartLineKey(r *http.Request) (userID, productID int64, err error) {
	if userID, err = pathID(r, "user_id"); err != nil {
		return 0, 0, err
	}
	if productID, err = pathID(r, "product_id"); err != nil {
		return 0, 0, err
	}
	return userID, productID, nil
}
