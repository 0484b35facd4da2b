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

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	FindByID(ctx context.Context, id int64) (*domain.Review, error)
	List(ctx context.Context) ([]*domain.Review, error)
	ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error)
	Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error)
	Delete(ctx context.Context, id int64) error
}

type reviewRepository struct {
	conn
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db DBTX, timeout time.Duration) ReviewRepository {
	return &reviewRepository{conn: newConn(db, timeout)}
}

const reviewColumns = `id, rating, comment, "ProductId", user_id, created_at, updated_at`

func scanReview(row rowScanner, extra ...any) (*domain.Review, error) {
	review := &domain.Review{}
	var comment sql.NullString
	var userID sql.NullInt64
	dest := append([]any{
		&review.ID,
		&review.Rating,
		&comment,
		&review.ProductID,
		&userID,
		&review.CreatedAt,
		&review.UpdatedAt,
	}, extra...)
	err := row.Scan(dest...)
	review.Comment = comment.String
	review.UserID = int64Ptr(userID)
	return review, err
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO "Review" (rating, comment, "ProductId", user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		review.Rating,
		nullString(review.Comment),
		review.ProductID,
		nullInt64(review.UserID),
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return domain.ErrReviewExists
		case pgCheckViolation:
			return domain.ErrInvalidRating
		}
		return wrapErr("create review", err)
	}

	return nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id int64) (*domain.Review, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	review, err := scanReview(r.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM "Review" WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, wrapErr("find review by ID", err)
	}

	return review, nil
}

func (r *reviewRepository) List(ctx context.Context) ([]*domain.Review, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+reviewColumns+` FROM "Review" ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list reviews", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, wrapErr("scan review", err)
		}
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list reviews", err)
	}

	return reviews, nil
}

// ListByProduct returns a product's reviews joined with product and author names
func (r *reviewRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT rv.id, rv.rating, rv.comment, rv."ProductId", rv.user_id, rv.created_at, rv.updated_at,
		       p.name, u.name
		FROM "Review" rv
		JOIN "Products" p ON p.id = rv."ProductId"
		LEFT JOIN users u ON u.id = rv.user_id
		WHERE rv."ProductId" = $1
		ORDER BY rv.created_at DESC, rv.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, wrapErr("list product reviews", err)
	}
	defer rows.Close()

	details := []*domain.ReviewDetail{}
	for rows.Next() {
		var productName string
		var authorName sql.NullString
		review, err := scanReview(rows, &productName, &authorName)
		if err != nil {
			return nil, wrapErr("scan review", err)
		}
		details = append(details, &domain.ReviewDetail{
			Review:      *review,
			ProductName: productName,
			AuthorName:  authorName.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list product reviews", err)
	}

	return details, nil
}

func (r *reviewRepository) Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sets := []string{}
	args := []any{}
	if rating != nil {
		args = append(args, *rating)
		sets = append(sets, fmt.Sprintf("rating = $%d", len(args)))
	}
	if comment != nil {
		args = append(args, nullString(*comment))
		sets = append(sets, fmt.Sprintf("comment = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE "Review" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), reviewColumns)

	review, err := scanReview(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReviewNotFound
		}
		if pgCode(err) == pgCheckViolation {
			return nil, domain.ErrInvalidRating
		}
		return nil, wrapErr("update review", err)
	}

	return review, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM "Review" WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete review", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrReviewNotFound
	}

	return nil
}
