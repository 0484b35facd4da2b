package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/mail"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultNotifyTimeout bounds the synchronous confirmation attempt after commit
const DefaultNotifyTimeout = 10 * time.Second

// Mailer delivers outbound messages
type Mailer interface {
	Dispatch(ctx context.Context, msg mail.Message) mail.Receipt
}

// PlaceOrderInput identifies the cart being checked out. A nil CartID
// checks out every line the user has.
type PlaceOrderInput struct {
	UserID        int64
	PaymentMethod string
	CartID        *int64
}

// PlacementResult is the outcome of a committed order placement
type PlacementResult struct {
	Order     *domain.Order
	Items     []*domain.OrderItem
	EmailID   string
	EmailSent bool
}

// Confirmation reports a confirmation email sent for an existing order
type Confirmation struct {
	EmailID   string
	EmailSent bool
}

// OrderService converts carts into orders and administers placed orders
type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacementResult, error)
	ResendConfirmation(ctx context.Context, orderID int64) (*Confirmation, error)
	Get(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context) ([]*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error)
	AllItems(ctx context.Context) ([]*domain.OrderItem, error)
	UserOrderItems(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error)
	Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

type orderService struct {
	tx            repository.TxManager
	users         repository.UserRepository
	orders        repository.OrderRepository
	items         repository.OrderItemRepository
	mailer        Mailer
	logger        *zap.Logger
	notifyTimeout time.Duration
}

// NewOrderService creates a new OrderService
func NewOrderService(
	tx repository.TxManager,
	users repository.UserRepository,
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	mailer Mailer,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		tx:            tx,
		users:         users,
		orders:        orders,
		items:         items,
		mailer:        mailer,
		logger:        logger,
		notifyTimeout: DefaultNotifyTimeout,
	}
}

// PlaceOrder locks the user's cart lines, creates the order with one item
// per line at the current product price and deletes the consumed lines, all
// in one transaction. The confirmation email is sent after commit; its
// failure never undoes the order.
func (s *orderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlacementResult, error) {
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	if input.UserID <= 0 || input.PaymentMethod == "" {
		return nil, domain.NewError(domain.ErrValidation, "user_id and payment_method are required")
	}

	var (
		user  *domain.User
		order *domain.Order
		items []*domain.OrderItem
	)

	err := s.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		lines, err := r.Cart().LockCheckoutLines(ctx, input.UserID, input.CartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrCartEmpty
		}

		// The recipient must be known before anything is written.
		user, err = recipient(ctx, r.Users(), input.UserID)
		if err != nil {
			return err
		}

		total := decimal.Zero
		quantity := 0
		lineIDs := make([]int64, 0, len(lines))
		for _, line := range lines {
			total = total.Add(line.Subtotal())
			quantity += line.Quantity
			lineIDs = append(lineIDs, line.CartLineID)
		}

		order = &domain.Order{
			TotalAmount:   total,
			Quantity:      quantity,
			Status:        domain.OrderStatusPending,
			PaymentMethod: input.PaymentMethod,
			UserID:        input.UserID,
			CartID:        input.CartID,
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}

		items = make([]*domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			item := &domain.OrderItem{
				UserID:      input.UserID,
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				UniquePrice: line.Price,
				Quantity:    line.Quantity,
			}
			if err := r.OrderItems().Create(ctx, item); err != nil {
				return err
			}
			items = append(items, item)
		}

		_, err = r.Cart().DeleteByIDs(ctx, lineIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(items)),
	)

	result := &PlacementResult{Order: order, Items: items}
	result.EmailID, result.EmailSent = s.notify(ctx, user, order, items)
	return result, nil
}

// ResendConfirmation sends the confirmation email of a placed order again,
// using the item snapshots taken at placement.
func (s *orderService) ResendConfirmation(ctx context.Context, orderID int64) (*Confirmation, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	user, err := recipient(ctx, s.users, order.UserID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	id, sent := s.notify(ctx, user, order, items)
	s.logger.Info("order confirmation resent",
		zap.Int64("order_id", order.ID),
		zap.String("email_id", id),
		zap.Bool("sent", sent),
	)
	return &Confirmation{EmailID: id, EmailSent: sent}, nil
}

// recipient loads the user an order confirmation goes to
func recipient(ctx context.Context, users repository.UserRepository, userID int64) (*domain.User, error) {
	user, err := users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) || (err == nil && user.Email == "") {
		return nil, domain.ErrEmailMissing
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// notify sends the order confirmation. The returned id is empty when no
// message could be built.
func (s *orderService) notify(ctx context.Context, user *domain.User, order *domain.Order, items []*domain.OrderItem) (string, bool) {
	msg, err := mail.OrderConfirmation(user, order, items)
	if err != nil {
		s.logger.Error("failed to render order confirmation", zap.Int64("order_id", order.ID), zap.Error(err))
		return "", false
	}

	// Detached from the request so a client disconnect does not abort the send.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	receipt := s.mailer.Dispatch(sendCtx, msg)
	return receipt.ID, receipt.Sent
}

func (s *orderService) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *orderService) List(ctx context.Context) ([]*domain.Order, error) {
	return s.orders.List(ctx)
}

func (s *orderService) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Items returns the lines of an order, failing when the order does not exist
func (s *orderService) Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.items.ListByOrder(ctx, orderID)
}

func (s *orderService) AllItems(ctx context.Context) ([]*domain.OrderItem, error) {
	return s.items.List(ctx)
}

// UserOrderItems returns the items of one order, restricted to those
// belonging to userID
func (s *orderService) UserOrderItems(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error) {
	return s.items.ListByUserOrder(ctx, userID, orderID)
}

// Update changes the status or payment method. Totals and items are fixed at placement.
func (s *orderService) Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}
	if patch.PaymentMethod != nil {
		trimmed := strings.TrimSpace(*patch.PaymentMethod)
		if trimmed == "" {
			return nil, domain.NewError(domain.ErrValidation, "payment_method must not be empty")
		}
		patch.PaymentMethod = &trimmed
	}
	return s.orders.Update(ctx, id, patch)
}

func (s *orderService) Delete(ctx context.Context, id int64) error {
	return s.orders.Delete(ctx, id)
}
