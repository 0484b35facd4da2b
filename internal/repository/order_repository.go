package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context) ([]*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error)
	Delete(ctx context.Context, id int64) error
}

type orderRepository struct {
	conn
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db DBTX, timeout time.Duration) OrderRepository {
	return &orderRepository{conn: newConn(db, timeout)}
}

const orderColumns = `id, "Total_amount", quantity, status, payment_method, user_id, cart_id, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var cartID sql.NullInt64
	err := row.Scan(
		&order.ID,
		&order.TotalAmount,
		&order.Quantity,
		&order.Status,
		&order.PaymentMethod,
		&order.UserID,
		&cartID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	order.CartID = int64Ptr(cartID)
	return order, err
}

// Create inserts a new order and fills in its generated fields
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO "Orders" ("Total_amount", quantity, status, payment_method, user_id, cart_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		order.TotalAmount,
		order.Quantity,
		string(order.Status),
		order.PaymentMethod,
		order.UserID,
		nullInt64(order.CartID),
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return wrapErr("create order", err)
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM "Orders" WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, wrapErr("find order by ID", err)
	}

	return order, nil
}

// List returns every order, newest first
func (r *orderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.query(ctx, "list orders",
		`SELECT `+orderColumns+` FROM "Orders" ORDER BY created_at DESC, id DESC`)
}

// ListByUser returns a user's orders, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return r.query(ctx, "list user orders",
		`SELECT `+orderColumns+` FROM "Orders" WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
}

// Update changes the administrative fields of an order
func (r *orderRepository) Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.PaymentMethod != nil {
		args = append(args, *patch.PaymentMethod)
		sets = append(sets, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE "Orders" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, wrapErr("update order", err)
	}

	return order, nil
}

// Delete removes an order together with its items
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM "Orders" WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete order", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) query(ctx context.Context, op, query string, args ...any) ([]*domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, wrapErr("scan order", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}

	return orders, nil
}
