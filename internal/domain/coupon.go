package domain

// Discount type constants. Any other value yields a zero discount.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon is an applied coupon as resolved by the external coupon service.
type Coupon struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Amount       int64  `json:"amount"`
}

// CalculateDiscount computes the discount for a coupon against a subtotal in
// minor currency units. The result is always clamped to [0, subtotal]
// regardless of coupon arithmetic; unknown discount types yield 0.
func CalculateDiscount(subtotal int64, coupon *Coupon) int64 {
	if coupon == nil || subtotal <= 0 {
		return 0
	}

	var discount int64
	switch coupon.DiscountType {
	case DiscountPercent:
		discount = subtotal * coupon.Amount / 100
	case DiscountFixed:
		discount = coupon.Amount
	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}
