package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one (user, product, quantity) row pending order placement
type CartLine struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CartItem is a cart line joined with the product it references
type CartItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// CheckoutLine is a locked cart line with the product price current at placement
type CheckoutLine struct {
	CartLineID int64
	ProductID  int64
	Quantity   int
	Price      decimal.Decimal
}

// Subtotal returns price × quantity for the line.
func (l CheckoutLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
