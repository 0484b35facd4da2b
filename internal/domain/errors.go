package domain

import "errors"

// Error kinds. Every error surfaced by a service wraps exactly one of these,
// and the transport layer maps the kind to an HTTP status.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrUserContactMissing = errors.New("user contact missing")
	ErrAuth               = errors.New("authentication failed")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Error is a classified error carrying a client-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError creates an error of the given kind with a client-facing message.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrUserNotFound       = NewError(ErrNotFound, "User not found")
	ErrUserAlreadyExists  = NewError(ErrConflict, "User with this email already exists")
	ErrUnknownEmail       = NewError(ErrValidation, "User not found")
	ErrInvalidPassword    = NewError(ErrAuth, "Invalid password")
	ErrInvalidToken       = NewError(ErrAuth, "Invalid token")
	ErrProductNotFound    = NewError(ErrNotFound, "Product not found")
	ErrCartItemNotFound   = NewError(ErrNotFound, "Cart item not found")
	ErrOutOfStock         = NewError(ErrInsufficientStock, "Insufficient stock")
	ErrCartEmpty          = NewError(ErrEmptyCart, "Cart is empty")
	ErrEmailMissing       = NewError(ErrUserContactMissing, "User email not found")
	ErrOrderNotFound      = NewError(ErrNotFound, "Order not found")
	ErrInvalidOrderStatus = NewError(ErrValidation, "Invalid order status")
	ErrReviewNotFound     = NewError(ErrNotFound, "Review not found")
	ErrReviewExists       = NewError(ErrConflict, "User has already reviewed this product")
	ErrInvalidRating      = NewError(ErrValidation, "Rating must be between 1 and 5")
	ErrInvalidQuantity    = NewError(ErrValidation, "Quantity must be greater than 0")
	ErrUnsupportedImage   = NewError(ErrValidation, "Unsupported image type")
	ErrImageTooLarge      = NewError(ErrValidation, "Image exceeds maximum upload size")
)

// Message returns the client-facing message for err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
