package domain

import "github.com/shopspring/decimal"

// Subtotal is the sum of quantity × unit price over all line items.
func Subtotal(items []OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += int64(it.Quantity) * it.UnitPrice
	}
	return sum
}

// ServiceFee applies rate to the subtotal and rounds half away from
// zero to whole pesos.
func ServiceFee(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}

// Price fills in the computed money fields of o from its line items and
// the given fee rate. Client-submitted totals are never trusted; callers
// recompute before persisting.
func Price(o *Order, rate decimal.Decimal) {
	o.Subtotal = Subtotal(o.Items)
	o.ServiceFee = ServiceFee(o.Subtotal, rate)
	o.Total = o.Subtotal + o.ServiceFee
}
