package domain

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          int64
	Title       string
	Venue       string
	City        string
	Category    string
	BasePrice   int64 // whole pesos, no decimals
	StartsAt    time.Time
	Image       string
	Description string
	CreatedAt   time.Time
}

type TicketTier struct {
	ID        int64
	EventID   int64
	Type      string
	Price     int64
	Total     int
	Available int
	CreatedAt time.Time
}

type Buyer struct {
	UserID string
	Email  string
	Name   string
	Phone  string
}

type OrderItem struct {
	TierID    int64
	Quantity  int
	UnitPrice int64
}

type Order struct {
	ID         uuid.UUID
	Number     string
	Buyer      Buyer
	Items      []OrderItem
	Subtotal   int64
	ServiceFee int64
	Total      int64
	Payment    Payment
	Status     OrderStatus
	CreatedAt  time.Time
}

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	Status  OrderStatus
	BuyerID string
}

type OrderCounts struct {
	Pending   int64
	Confirmed int64
	Rejected  int64
	Total     int64
}

type Principal struct {
	ID    string
	Email string
	Name  string
	Phone string
	Roles []string
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
