package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating and comment attached to a product
type Review struct {
	ID        int64     `json:"id" db:"id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	ProductID int64     `json:"ProductId" db:"ProductId"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReviewDetail is a review joined with its product and author names
type ReviewDetail struct {
	Review
	ProductName string `json:"product_name"`
	AuthorName  string `json:"author_name,omitempty"`
}
