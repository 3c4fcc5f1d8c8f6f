package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrTierNotFound = errors.New("ticket tier not found")
	ErrBadQuantity  = errors.New("quantity must be positive")
)

type InsufficientStockError struct {
	TierID int64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for tier %d", e.TierID)
}
