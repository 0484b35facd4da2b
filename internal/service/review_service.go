package service

import (
	"context"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ReviewInput carries the fields of a new review
type ReviewInput struct {
	Rating    int
	Comment   string
	ProductID int64
	UserID    *int64
}

// ReviewService manages product reviews
type ReviewService interface {
	Create(ctx context.Context, input ReviewInput) (*domain.Review, error)
	List(ctx context.Context) ([]*domain.Review, error)
	ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error)
	Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
}

type reviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
}

// NewReviewService creates a new ReviewService
func NewReviewService(reviews repository.ReviewRepository, products repository.ProductRepository) ReviewService {
	return &reviewService{reviews: reviews, products: products}
}

func (s *reviewService) Create(ctx context.Context, input ReviewInput) (*domain.Review, error) {
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	if input.ProductID <= 0 {
		return nil, domain.NewError(domain.ErrValidation, "ProductId is required")
	}
	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		return nil, err
	}

	review := &domain.Review{
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
		ProductID: input.ProductID,
		UserID:    input.UserID,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *reviewService) List(ctx context.Context) ([]*domain.Review, error) {
	return s.reviews.List(ctx)
}

func (s *reviewService) ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error) {
	return s.reviews.ListByProduct(ctx, productID)
}

func (s *reviewService) Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error) {
	if rating != nil {
		if err := validateRating(*rating); err != nil {
			return nil, err
		}
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		comment = &trimmed
	}
	return s.reviews.Update(ctx, id, rating, comment)
}

func (s *reviewService) Delete(ctx context.Context, id int64) error {
	return s.reviews.Delete(ctx, id)
}

func validateRating(rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.ErrInvalidRating
	}
	return nil
}
