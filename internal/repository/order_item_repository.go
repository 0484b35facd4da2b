package repository

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// OrderItemRepository defines the interface for order item data access.
// Items are write-once: there is no update.
type OrderItemRepository interface {
	Create(ctx context.Context, item *domain.OrderItem) error
	List(ctx context.Context) ([]*domain.OrderItem, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*domain.OrderItem, error)
	ListByUserOrder(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error)
}

const orderItemColumns = `id, user_id, order_id, product_id, unique_price, quantity, "Total_amount", created_at, updated_at`

type orderItemRepository struct {
	conn
}

// NewOrderItemRepository creates a new instance of OrderItemRepository
func NewOrderItemRepository(db DBTX, timeout time.Duration) OrderItemRepository {
	return &orderItemRepository{conn: newConn(db, timeout)}
}

// Create inserts an item. Total_amount is computed by the database.
func (r *orderItemRepository) Create(ctx context.Context, item *domain.OrderItem) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO "OrderItems" (user_id, order_id, product_id, unique_price, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, "Total_amount", created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		item.UserID,
		item.OrderID,
		item.ProductID,
		item.UniquePrice,
		item.Quantity,
	).Scan(&item.ID, &item.TotalAmount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return wrapErr("create order item", err)
	}

	return nil
}

func (r *orderItemRepository) List(ctx context.Context) ([]*domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM "OrderItems" ORDER BY id`
	return r.query(ctx, query)
}

func (r *orderItemRepository) ListByOrder(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM "OrderItems" WHERE order_id = $1 ORDER BY id`
	return r.query(ctx, query, orderID)
}

func (r *orderItemRepository) ListByUserOrder(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM "OrderItems" WHERE user_id = $1 AND order_id = $2 ORDER BY id`
	return r.query(ctx, query, userID, orderID)
}

func (r *orderItemRepository) query(ctx context.Context, query string, args ...any) ([]*domain.OrderItem, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list order items", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.OrderID,
			&item.ProductID,
			&item.UniquePrice,
			&item.Quantity,
			&item.TotalAmount,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, wrapErr("scan order item", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list order items", err)
	}

	return items, nil
}
