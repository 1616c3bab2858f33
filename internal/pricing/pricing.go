// Package pricing implements the pure discount arithmetic applied to
// variants. It is the only writer of variant pricing fields; persistence is
// left to the caller.
package pricing

import (
	"math"

	"github.com/utafrali/promotion-service/internal/domain"
)

// DefaultSaleNote is stamped on variants when a campaign carries no note.
const DefaultSaleNote = "Promotion"

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Trunc(v*100+math.Copysign(0.5, v)) / 100
}

// Apply returns a copy of v with the discount applied. Percentage discounts
// reduce the base price by value percent; fixed-amount discounts subtract
// value. The discount price is clamped at zero and the derived percent at
// [0, 100]. Applying the same discount twice yields the same result.
func Apply(v domain.Variant, discountType string, value float64, note string) domain.Variant {
	switch discountType {
	case domain.DiscountTypePercentage:
		v.DiscountPrice = math.Max(0, Round2(v.BasePrice*(1-value/100)))
		v.DiscountPercent = value
	case domain.DiscountTypeFixedAmount:
		v.DiscountPrice = math.Max(0, Round2(v.BasePrice-value))
		if v.BasePrice > 0 {
			v.DiscountPercent = clamp(Round2(value/v.BasePrice*100), 0, 100)
		} else {
			v.DiscountPercent = 0
		}
	default:
		return v
	}

	v.OnSales = true
	if note != "" {
		v.SaleNote = note
	} else {
		v.SaleNote = DefaultSaleNote
	}
	return v
}

// Revert returns a copy of v with all sale pricing cleared. Reverting an
// already-reverted variant is a no-op.
func Revert(v domain.Variant) domain.Variant {
	v.DiscountPrice = 0
	v.DiscountPercent = 0
	v.OnSales = false
	v.SaleNote = ""
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
