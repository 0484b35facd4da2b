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

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	// DecrementStock reserves qty units, failing with domain.ErrOutOfStock
	// when fewer than qty remain.
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
}

type productRepository struct {
	conn
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX, timeout time.Duration) ProductRepository {
	return &productRepository{conn: newConn(db, timeout)}
}

const productColumns = `id, name, price, stock_quantity, image_url, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var imageURL sql.NullString
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.StockQuantity,
		&imageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	product.ImageURL = imageURL.String
	return product, err
}

// Create inserts a new product and fills in its generated fields
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO "Products" (name, price, stock_quantity, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		product.Name,
		product.Price,
		product.StockQuantity,
		nullString(product.ImageURL),
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return wrapErr("create product", err)
	}

	return nil
}

// Update applies the non-nil fields of patch and returns the stored product
func (r *productRepository) Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.StockQuantity != nil {
		add("stock_quantity", *patch.StockQuantity)
	}
	if patch.ImageURL != nil {
		add("image_url", nullString(*patch.ImageURL))
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE "Products" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), productColumns,
	)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, wrapErr("update product", err)
	}

	return product, nil
}

// Delete removes a product; dependent cart lines, order items and reviews cascade
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM "Products" WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete product", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM "Products" WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, wrapErr("find product by ID", err)
	}

	return product, nil
}

// List returns all products, newest first
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	return r.query(ctx, "list products",
		`SELECT `+productColumns+` FROM "Products" ORDER BY created_at DESC, id DESC`)
}

// Search returns products whose name contains query, case-insensitively
func (r *productRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	if strings.TrimSpace(query) == "" {
		return r.List(ctx)
	}

	return r.query(ctx, "search products",
		`SELECT `+productColumns+` FROM "Products"
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY created_at DESC, id DESC`,
		"%"+escapeLike(query)+"%",
	)
}

func (r *productRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE "Products"
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return wrapErr("decrement stock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrOutOfStock
	}

	return nil
}

// IncrementStock returns qty units to the product. A product that no longer
// exists is ignored.
func (r *productRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE "Products" SET stock_quantity = stock_quantity + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return wrapErr("increment stock", err)
	}

	return nil
}

func (r *productRepository) query(ctx context.Context, op, query string, args ...any) ([]*domain.Product, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scan product", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}

	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
