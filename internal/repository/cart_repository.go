package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/domain"
)

// CartRepository defines the interface for cart line data access
type CartRepository interface {
	// AddQuantity inserts a line or merges delta into the existing
	// (user, product) line in one statement.
	AddQuantity(ctx context.Context, userID, productID int64, delta int) (*domain.CartLine, error)
	// LockLine loads a line with a row lock held until the transaction ends.
	LockLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, lineID int64, quantity int) (*domain.CartLine, error)
	// DeleteLine removes a line and returns it, or nil when no line existed.
	DeleteLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error)
	DeleteAll(ctx context.Context, userID int64) ([]*domain.CartLine, error)
	ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error)
	// LockCheckoutLines locks the user's lines, or the single line cartID when
	// given, and returns them with the current product price.
	LockCheckoutLines(ctx context.Context, userID int64, cartID *int64) ([]domain.CheckoutLine, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

type cartRepository struct {
	conn
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX, timeout time.Duration) CartRepository {
	return &cartRepository{conn: newConn(db, timeout)}
}

const cartLineColumns = `id, user_id, product_id, quantity, created_at`

func scanCartLine(row rowScanner) (*domain.CartLine, error) {
	line := &domain.CartLine{}
	err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt)
	return line, err
}

func (r *cartRepository) AddQuantity(ctx context.Context, userID, productID int64, delta int) (*domain.CartLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO "Cart" (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = "Cart".quantity + EXCLUDED.quantity
		RETURNING ` + cartLineColumns

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, userID, productID, delta))
	if err != nil {
		return nil, wrapErr("add cart line", err)
	}

	return line, nil
}

func (r *cartRepository) LockLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + cartLineColumns + ` FROM "Cart"
		WHERE user_id = $1 AND product_id = $2
		FOR UPDATE`

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, wrapErr("lock cart line", err)
	}

	return line, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, lineID int64, quantity int) (*domain.CartLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `UPDATE "Cart" SET quantity = $2 WHERE id = $1 RETURNING ` + cartLineColumns

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, lineID, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, wrapErr("update cart line", err)
	}

	return line, nil
}

func (r *cartRepository) DeleteLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM "Cart" WHERE user_id = $1 AND product_id = $2 RETURNING ` + cartLineColumns

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, userID, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("delete cart line", err)
	}

	return line, nil
}

func (r *cartRepository) DeleteAll(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM "Cart" WHERE user_id = $1 RETURNING `+cartLineColumns, userID)
	if err != nil {
		return nil, wrapErr("clear cart", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, wrapErr("scan cart line", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("clear cart", err)
	}

	return lines, nil
}

func (r *cartRepository) ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.product_id, p.name, p.image_url, p.price, c.quantity, c.created_at
		FROM "Cart" c
		JOIN "Products" p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr("list cart items", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		var imageURL sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Name,
			&imageURL,
			&item.Price,
			&item.Quantity,
			&item.CreatedAt,
		); err != nil {
			return nil, wrapErr("scan cart item", err)
		}
		item.ImageURL = imageURL.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list cart items", err)
	}

	return items, nil
}

func (r *cartRepository) LockCheckoutLines(ctx context.Context, userID int64, cartID *int64) ([]domain.CheckoutLine, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.product_id, c.quantity, p.price
		FROM "Cart" c
		JOIN "Products" p ON p.id = c.product_id
		WHERE c.user_id = $1 AND ($2::bigint IS NULL OR c.id = $2)
		ORDER BY c.id
		FOR UPDATE OF c
	`

	rows, err := r.db.QueryContext(ctx, query, userID, nullInt64(cartID))
	if err != nil {
		return nil, wrapErr("lock checkout lines", err)
	}
	defer rows.Close()

	lines := []domain.CheckoutLine{}
	for rows.Next() {
		var line domain.CheckoutLine
		if err := rows.Scan(&line.CartLineID, &line.ProductID, &line.Quantity, &line.Price); err != nil {
			return nil, wrapErr("scan checkout line", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("lock checkout lines", err)
	}

	return lines, nil
}

func (r *cartRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM "Cart" WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, wrapErr("delete cart lines", err)
	}

	return result.RowsAffected()
}
