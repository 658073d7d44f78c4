// Package pricing computes delivery fees and order totals.
package pricing

import "github.com/shopspring/decimal"

// Rules holds the delivery pricing configuration.
type Rules struct {
	// DeliveryFee applies when the subtotal is below FreeDeliveryThreshold.
	DeliveryFee           Amount
	FreeDeliveryThreshold Amount
}

func NewRules(fee, threshold decimal.Decimal) Rules {
	return Rules{DeliveryFee: NewAmount(fee), FreeDeliveryThreshold: NewAmount(threshold)}
}

// Quote is the server-side price breakdown of an order.
type Quote struct {
	Subtotal    Amount `json:"subtotal"`
	DeliveryFee Amount `json:"deliveryFee"`
	TotalAmount Amount `json:"totalAmount"`
}

// Line is a priced quantity.
type Line struct {
	Price    Amount
	Quantity int
}

// Subtotal sums price*quantity over lines.
func Subtotal(lines []Line) Amount {
	sum := NewAmount(decimal.Zero)
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(l.Quantity))
	}
	return sum
}

// DeliveryFeeFor returns zero when subtotal >= threshold, the configured fee otherwise.
func (r Rules) DeliveryFeeFor(subtotal Amount) Amount {
	if subtotal.GreaterThanOrEqual(r.FreeDeliveryThreshold.Decimal) {
		return NewAmount(decimal.Zero)
	}
	return r.DeliveryFee
}

func (r Rules) Quote(subtotal Amount) Quote {
	fee := r.DeliveryFeeFor(subtotal)
	return Quote{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		TotalAmount: subtotal.Add(fee),
	}
}
