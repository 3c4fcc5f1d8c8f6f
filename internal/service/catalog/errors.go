package catalog

import "errors"

var (
	ErrEventNotFound           = errors.New("event not found")
	ErrInvalidEvent            = errors.New("event is missing required fields")
	ErrEventHasOrders          = errors.New("event is referenced by orders")
	ErrEventHasConfirmedOrders = errors.New("event is referenced by confirmed orders")
)
