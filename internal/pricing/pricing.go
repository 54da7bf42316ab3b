package pricing

import (
	"github.com/shopspring/decimal"
)

// extraDayRate is the multiplier applied to every rental day after the first.
var extraDayRate = decimal.NewFromFloat(1.1)

// FlatTotal is the naive price model: price per day times duration.
// Kept for reference and comparison; the marketplace does not use it.
func FlatTotal(pricePerDay decimal.Decimal, durationDays int) decimal.Decimal {
	return pricePerDay.Mul(decimal.NewFromInt(int64(durationDays)))
}

// MarkupTotal is the canonical price model: the first day costs the full
// daily price and every additional day costs 110% of it.
//
//	total = p + 1.1*p*(days-1)
func MarkupTotal(pricePerDay decimal.Decimal, durationDays int) decimal.Decimal {
	if durationDays <= 1 {
		return pricePerDay
	}
	extra := pricePerDay.Mul(extraDayRate).Mul(decimal.NewFromInt(int64(durationDays - 1)))
	return pricePerDay.Add(extra)
}

// RentalTotal computes the order total for a rental of the given duration.
func RentalTotal(pricePerDay decimal.Decimal, durationDays int) decimal.Decimal {
	return MarkupTotal(pricePerDay, durationDays)
}
