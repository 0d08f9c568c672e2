// Package pricing holds the single rule that turns a product's base price and
// optional discount into the chargeable price. Cart totals and order line
// prices must both go through FinalPrice so that what the cart shows is
// exactly what gets committed.
package pricing

import "github.com/shopspring/decimal"

// FinalPrice returns the chargeable price for a product. A set discount is an
// absolute replacement price, not a reduction percentage: when present it is
// returned as-is, otherwise the base price is returned unchanged.
func FinalPrice(price decimal.Decimal, discount decimal.NullDecimal) decimal.Decimal {
	if discount.Valid {
		return discount.Decimal
	}
	return price
}

// ValidDiscount reports whether a discount is acceptable for the given base
// price. An unset discount is always valid; a set one must be non-negative
// and strictly below the base price.
func ValidDiscount(price decimal.Decimal, discount decimal.NullDecimal) bool {
	if !discount.Valid {
		return true
	}
	return !discount.Decimal.IsNegative() && discount.Decimal.LessThan(price)
}
