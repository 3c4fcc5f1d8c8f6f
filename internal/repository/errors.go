package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusChanged     = errors.New("order status already changed")
	ErrEventReferenced   = errors.New("event is referenced by orders")
)
