package service

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// CartService manages cart lines. Stock is reserved when quantity is added
// to a cart and released when it is removed.
type CartService interface {
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error)
	ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error)
	RemoveItem(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
}

type cartService struct {
	tx     repository.TxManager
	cart   repository.CartRepository
	logger *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(tx repository.TxManager, cart repository.CartRepository, logger *zap.Logger) CartService {
	return &cartService{tx: tx, cart: cart, logger: logger}
}

// AddItem decrements stock and merges quantity into the user's line for the
// product in one transaction. Nothing changes when either step fails.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error) {
	if userID <= 0 || productID <= 0 {
		return nil, domain.NewError(domain.ErrValidation, "user_id and product_id are required")
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := s.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			return err
		}

		// Conditional decrement; concurrent adds cannot oversell.
		if err := r.Products().DecrementStock(ctx, productID, quantity); err != nil {
			return err
		}

		var err error
		line, err = r.Cart().AddQuantity(ctx, userID, productID, quantity)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

func (s *cartService) ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	return s.cart.ListItems(ctx, userID)
}

// UpdateQuantity sets the absolute quantity of a line and moves the
// difference in or out of product stock.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var line *domain.CartLine
	err := s.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		current, err := r.Cart().LockLine(ctx, userID, productID)
		if err != nil {
			return err
		}

		switch delta := quantity - current.Quantity; {
		case delta > 0:
			err = r.Products().DecrementStock(ctx, productID, delta)
		case delta < 0:
			err = r.Products().IncrementStock(ctx, productID, -delta)
		}
		if err != nil {
			return err
		}

		line, err = r.Cart().SetQuantity(ctx, current.ID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem deletes the line and returns its quantity to stock. Removing a
// line that does not exist succeeds.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	return s.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		line, err := r.Cart().DeleteLine(ctx, userID, productID)
		if err != nil || line == nil {
			return err
		}
		return r.Products().IncrementStock(ctx, line.ProductID, line.Quantity)
	})
}

func (s *cartService) Clear(ctx context.Context, userID int64) error {
	return s.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		lines, err := r.Cart().DeleteAll(ctx, userID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := r.Products().IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}
