package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSubtotal(t *testing.T) {
	assert.Equal(t, int64(0), Subtotal(nil))

	items := []OrderItem{
		{TierID: 1, Quantity: 2, UnitPrice: 50_000},
		{TierID: 2, Quantity: 1, UnitPrice: 100_000},
	}
	assert.Equal(t, int64(200_000), Subtotal(items))
}

func TestServiceFee_RoundsHalfAwayFromZero(t *testing.T) {
	rate := decimal.NewFromFloat(0.05)

	assert.Equal(t, int64(5_000), ServiceFee(100_000, rate))
	// 1010 * 0.05 = 50.5, rounds up to 51
	assert.Equal(t, int64(51), ServiceFee(1_010, rate))
	assert.Equal(t, int64(0), ServiceFee(0, rate))
}

func TestPrice(t *testing.T) {
	o := &Order{
		Items: []OrderItem{
			{TierID: 1, Quantity: 2, UnitPrice: 50_000},
		},
		// stale client-submitted amounts must be overwritten
		Subtotal:   1,
		ServiceFee: 2,
		Total:      3,
	}

	Price(o, decimal.NewFromFloat(0.05))

	assert.Equal(t, int64(100_000), o.Subtotal)
	assert.Equal(t, int64(5_000), o.ServiceFee)
	assert.Equal(t, int64(105_000), o.Total)
}
