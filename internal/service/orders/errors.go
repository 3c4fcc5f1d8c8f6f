package orders

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoItems           = errors.New("order needs at least one line item")
	ErrBadQuantity       = errors.New("line item quantity must be positive")
	ErrMissingBuyer      = errors.New("buyer email is required")
	ErrInvalidTransition = errors.New("illegal order status transition")
	ErrBadStatusFilter   = errors.New("unknown order status")
	ErrNumberCollision   = errors.New("could not allocate a unique order number")
)
