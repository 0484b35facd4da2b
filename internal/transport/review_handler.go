package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateReviewRequest attaches a rating and comment to a product
type CreateReviewRequest struct {
	Rating    FlexInt  `json:"rating" validate:"required,gte=1,lte=5"`
	Comment   string   `json:"comment"`
	ProductID FlexInt  `json:"ProductId" validate:"required,gt=0"`
	UserID    *FlexInt `json:"user_id" validate:"omitempty,gt=0"`
}

// UpdateReviewRequest changes the rating or comment of a review
type UpdateReviewRequest struct {
	Rating  *FlexInt `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string  `json:"comment"`
}

// ReviewHandler handles review requests
type ReviewHandler struct {
	handlerBase
	reviews service.ReviewService
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{handlerBase: handlerBase{logger: logger}, reviews: reviews}
}

// RegisterRoutes registers the review routes. GET /reviews/{id} takes a product id.
func (h *ReviewHandler) RegisterRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.ListByProduct)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	input := service.ReviewInput{
		Rating:    int(req.Rating),
		Comment:   req.Comment,
		ProductID: req.ProductID.Int64(),
	}
	if req.UserID != nil {
		userID := req.UserID.Int64()
		input.UserID = &userID
	}

	review, err := h.reviews.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	reviews, err := h.reviews.ListByProduct(r.Context(), productID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req UpdateReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithRequestError(w, err)
		return
	}

	review, err := h.reviews.Update(r.Context(), id, optionalInt(req.Rating), req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.reviews.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
