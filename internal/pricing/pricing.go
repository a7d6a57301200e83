// Package pricing computes cart totals and coupon discounts. It knows nothing
// about storage; callers pass the current lines in.
package pricing

import "context"

// Line is anything with a unit price and a quantity.
type Line interface {
	UnitPrice() float64
	Units() float64
}

// Total is the sum of price*quantity. No rounding is applied.
func Total[L Line](lines []L) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.UnitPrice() * l.Units()
	}
	return total
}

// ItemCount sums quantities, which is not the same as len(lines).
func ItemCount[L Line](lines []L) float64 {
	count := 0.0
	for _, l := range lines {
		count += l.Units()
	}
	return count
}

type Summary struct {
	Lines     int           `json:"lines"`
	ItemCount float64       `json:"itemCount"`
	Subtotal  float64       `json:"subtotal"`
	Discount  float64       `json:"discount"`
	Total     float64       `json:"total"`
	Coupon    *CouponResult `json:"coupon,omitempty"`
}

// Summarize prices lines and, when coupon is set, re-validates it against the
// current subtotal. An applied coupon that no longer validates gives no discount.
func Summarize[L Line](ctx context.Context, v *Validator, lines []L, coupon string) Summary {
	s := Summary{
		Lines:     len(lines),
		ItemCount: ItemCount(lines),
		Subtotal:  Total(lines),
	}
	if coupon != "" && v != nil {
		res := v.ValidateCoupon(ctx, coupon, s.Subtotal)
		if res.Valid {
			s.Discount = res.Discount
		}
		s.Coupon = &res
	}
	s.Total = s.Subtotal - s.Discount
	return s
}
