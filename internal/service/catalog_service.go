package service

import (
	"context"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the fields of a new product
type ProductInput struct {
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	ImageURL      string
}

// CatalogService manages products and their images
type CatalogService interface {
	Create(ctx context.Context, input ProductInput, image *storage.Upload) (*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error)
	AttachImage(ctx context.Context, id int64, image storage.Upload) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type catalogService struct {
	products repository.ProductRepository
	images   storage.Store
	logger   *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(products repository.ProductRepository, images storage.Store, logger *zap.Logger) CatalogService {
	return &catalogService{products: products, images: images, logger: logger}
}

// Create stores the optional image first so the row is inserted with its URL.
// A failed insert removes the orphaned image.
func (s *catalogService) Create(ctx context.Context, input ProductInput, image *storage.Upload) (*domain.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateProduct(&input.Name, &input.Price, &input.StockQuantity); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:          input.Name,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		ImageURL:      input.ImageURL,
	}

	if image != nil {
		url, err := s.images.Save(ctx, *image)
		if err != nil {
			return nil, err
		}
		product.ImageURL = url
	}

	if err := s.products.Create(ctx, product); err != nil {
		if image != nil {
			s.discardImage(ctx, product.ImageURL)
		}
		return nil, err
	}

	s.logger.Info("product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *catalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

// Search lists products whose name contains query, or every product when query is blank
func (s *catalogService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.products.List(ctx)
	}
	return s.products.Search(ctx, query)
}

func (s *catalogService) Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := validateProduct(patch.Name, patch.Price, patch.StockQuantity); err != nil {
		return nil, err
	}
	return s.products.Update(ctx, id, patch)
}

// AttachImage replaces the product image and removes the previous file
func (s *catalogService) AttachImage(ctx context.Context, id int64, image storage.Upload) (*domain.Product, error) {
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Save(ctx, image)
	if err != nil {
		return nil, err
	}

	updated, err := s.products.Update(ctx, id, domain.ProductPatch{ImageURL: &url})
	if err != nil {
		s.discardImage(ctx, url)
		return nil, err
	}

	if current.ImageURL != "" && current.ImageURL != url {
		s.discardImage(ctx, current.ImageURL)
	}
	return updated, nil
}

func (s *catalogService) Delete(ctx context.Context, id int64) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if product.ImageURL != "" {
		s.discardImage(ctx, product.ImageURL)
	}
	return nil
}

func (s *catalogService) discardImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to delete product image", zap.String("url", url), zap.Error(err))
	}
}

func validateProduct(name *string, price *decimal.Decimal, stock *int) error {
	if name != nil && *name == "" {
		return domain.NewError(domain.ErrValidation, "Product name is required")
	}
	if price != nil && price.IsNegative() {
		return domain.NewError(domain.ErrValidation, "Price must not be negative")
	}
	if stock != nil && *stock < 0 {
		return domain.NewError(domain.ErrValidation, "Stock quantity must not be negative")
	}
	return nil
}
