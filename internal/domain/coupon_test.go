package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDiscount_Percent(t *testing.T) {
	c := &Coupon{Code: "TEN", DiscountType: DiscountPercent, Amount: 10}
	// 10% of 400.00 with 50.00 shipping elsewhere: discount applies to the
	// item subtotal only.
	assert.Equal(t, int64(4000), CalculateDiscount(40000, c))
}

func TestCalculateDiscount_Fixed(t *testing.T) {
	c := &Coupon{Code: "FIVER", DiscountType: DiscountFixed, Amount: 500}
	assert.Equal(t, int64(500), CalculateDiscount(40000, c))
}

func TestCalculateDiscount_ClampedToSubtotal(t *testing.T) {
	c := &Coupon{Code: "BIG", DiscountType: DiscountFixed, Amount: 99999}
	assert.Equal(t, int64(40000), CalculateDiscount(40000, c))

	pc := &Coupon{Code: "DOUBLE", DiscountType: DiscountPercent, Amount: 200}
	assert.Equal(t, int64(40000), CalculateDiscount(40000, pc))
}

func TestCalculateDiscount_NeverNegative(t *testing.T) {
	c := &Coupon{Code: "NEG", DiscountType: DiscountFixed, Amount: -500}
	assert.Equal(t, int64(0), CalculateDiscount(40000, c))

	pc := &Coupon{Code: "NEGPCT", DiscountType: DiscountPercent, Amount: -10}
	assert.Equal(t, int64(0), CalculateDiscount(40000, pc))
}

func TestCalculateDiscount_NilCoupon(t *testing.T) {
	assert.Equal(t, int64(0), CalculateDiscount(40000, nil))
}

func TestCalculateDiscount_UnknownType(t *testing.T) {
	c := &Coupon{Code: "ODD", DiscountType: "bogo", Amount: 10}
	assert.Equal(t, int64(0), CalculateDiscount(40000, c))
}

func TestCalculateDiscount_ZeroSubtotal(t *testing.T) {
	c := &Coupon{Code: "TEN", DiscountType: DiscountPercent, Amount: 10}
	assert.Equal(t, int64(0), CalculateDiscount(0, c))
}
