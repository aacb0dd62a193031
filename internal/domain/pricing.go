package domain

import "github.com/shopspring/decimal"

// EffectiveUnitPrice resolves the price a single unit sells for right now.
// A variant price override wins outright. Otherwise the discount price
// applies only when it is set and strictly lower than the base price; a
// "discount" at or above the base price is ignored.
func EffectiveUnitPrice(product Product, variant *ProductVariant) decimal.Decimal {
	if variant != nil && variant.PriceOverride != nil {
		return *variant.PriceOverride
	}
	if product.DiscountPrice != nil && product.DiscountPrice.LessThan(product.Price) {
		return *product.DiscountPrice
	}
	return product.Price
}

// LineSubtotal returns unit price multiplied by quantity.
func LineSubtotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}
