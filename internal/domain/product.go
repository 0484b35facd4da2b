package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID            int64           `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	ImageURL      string          `json:"image_url" db:"image_url"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductPatch holds the fields of a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name          *string
	Price         *decimal.Decimal
	StockQuantity *int
	ImageURL      *string
}
