package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order represents a placed order
type Order struct {
	ID            int64           `json:"id" db:"id"`
	TotalAmount   decimal.Decimal `json:"Total_amount" db:"Total_amount"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Status        OrderStatus     `json:"status" db:"status"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	UserID        int64           `json:"user_id" db:"user_id"`
	CartID        *int64          `json:"cart_id" db:"cart_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is a priced line of an order. UniquePrice is the product price
// captured at placement and never changes afterwards.
type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	UniquePrice decimal.Decimal `json:"unique_price" db:"unique_price"`
	Quantity    int             `json:"quantity" db:"quantity"`
	TotalAmount decimal.Decimal `json:"Total_amount" db:"Total_amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderPatch holds the administrative fields of an order that may change after placement.
type OrderPatch struct {
	Status        *OrderStatus
	PaymentMethod *string
}
