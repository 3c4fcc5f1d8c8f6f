package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderRejected  OrderStatus = "rejected"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderConfirmed || s == OrderRejected
}

// CanTransitionTo reports whether the status machine allows s -> next.
// The only legal transitions are pending -> confirmed and pending -> rejected.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s != OrderPending {
		return false
	}
	return next == OrderConfirmed || next == OrderRejected
}
