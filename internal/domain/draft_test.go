package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func draftWithItems() *CheckoutDraft {
	return &CheckoutDraft{
		ID:        "draft-001",
		ShopperID: "shopper-001",
		Status:    StatusActive,
		Step:      StepShipping,
		Items: []LineItem{
			{ProductID: "prod-1", Name: "Walnut Board", Quantity: 2, UnitPrice: 15000},
			{ProductID: "prod-2", Name: "Oak Tray", Quantity: 1, UnitPrice: 10000},
		},
		Currency:   "EUR",
		Settlement: NoSettlement(),
		ExpiresAt:  time.Now().UTC().Add(30 * time.Minute),
	}
}

func sampleShippingAddress() *Address {
	return &Address{
		FullName:    "Jamie Doe",
		AddressLine: "12 Harbour Lane",
		City:        "Rotterdam",
		PostalCode:  "3011",
		Country:     "NL",
		Phone:       "+31612345678",
	}
}

func TestStepIndex_Ordering(t *testing.T) {
	assert.Equal(t, 0, StepIndex(StepShipping))
	assert.Equal(t, 4, StepIndex(StepReview))
	assert.Equal(t, -1, StepIndex("confirmation"))
	assert.True(t, StepIndex(StepShippingMethod) < StepIndex(StepBilling))
}

// Linear gating: a step can only be entered if all steps strictly before it
// have produced non-null data.
func TestCanEnter_LinearGating(t *testing.T) {
	d := draftWithItems()

	assert.True(t, d.CanEnter(StepShipping))
	assert.False(t, d.CanEnter(StepShippingMethod), "shipping method requires a shipping address")
	assert.False(t, d.CanEnter(StepPayment))
	assert.False(t, d.CanEnter(StepReview))

	d.ShippingAddress = sampleShippingAddress()
	assert.True(t, d.CanEnter(StepShippingMethod))
	assert.False(t, d.CanEnter(StepBilling), "billing requires a chosen shipping method")

	d.ShippingMethod = &ShippingMethod{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000}
	assert.True(t, d.CanEnter(StepBilling))
	assert.False(t, d.CanEnter(StepPayment), "payment requires a billing address")

	d.DeriveBillingFromShipping()
	assert.True(t, d.CanEnter(StepPayment))
	assert.False(t, d.CanEnter(StepReview), "review requires a payment method")

	d.PaymentMethod = "card"
	assert.True(t, d.CanEnter(StepReview))
}

func TestCanEnter_UnknownStep(t *testing.T) {
	d := draftWithItems()
	assert.False(t, d.CanEnter("warehouse"))
}

func TestDeriveBillingFromShipping(t *testing.T) {
	d := draftWithItems()
	d.ShippingAddress = &Address{
		FullName:    "Jamie Doe",
		AddressLine: "12 Harbour Lane",
		City:        "Rotterdam",
		PostalCode:  "3011",
		Country:     "NL",
		// State and Phone deliberately absent.
	}

	d.DeriveBillingFromShipping()

	assert.NotNil(t, d.BillingAddress)
	assert.Equal(t, "Jamie Doe", d.BillingAddress.FullName)
	assert.Equal(t, "", d.BillingAddress.State, "missing state defaults to empty string")
	assert.Equal(t, "", d.BillingAddress.Phone, "missing phone defaults to empty string")

	// The derived billing address is a copy, not an alias.
	d.BillingAddress.City = "Utrecht"
	assert.Equal(t, "Rotterdam", d.ShippingAddress.City)
}

func TestDeriveBillingFromShipping_NoShippingAddress(t *testing.T) {
	d := draftWithItems()
	d.DeriveBillingFromShipping()
	assert.Nil(t, d.BillingAddress)
}

func TestTotals(t *testing.T) {
	d := draftWithItems()
	assert.Equal(t, int64(40000), d.CalculateSubtotal())
	assert.Equal(t, int64(0), d.ShippingCost())
	assert.Equal(t, int64(40000), d.TotalAmount())

	d.ShippingMethod = &ShippingMethod{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000}
	d.AppliedCoupon = &Coupon{Code: "TEN", DiscountType: DiscountPercent, Amount: 10}

	assert.Equal(t, int64(4000), d.DiscountAmount())
	assert.Equal(t, int64(41000), d.TotalAmount())
}

// The discount is re-evaluated from the live subtotal, not cached: quantity
// edits while a coupon stays applied must change the discount.
func TestDiscountAmount_TracksSubtotal(t *testing.T) {
	d := draftWithItems()
	d.AppliedCoupon = &Coupon{Code: "TEN", DiscountType: DiscountPercent, Amount: 10}
	assert.Equal(t, int64(4000), d.DiscountAmount())

	d.Items = d.Items[:1] // 2 x 15000
	assert.Equal(t, int64(3000), d.DiscountAmount())
}

func TestIsExpiredAndTerminal(t *testing.T) {
	d := draftWithItems()
	assert.False(t, d.IsExpired())
	assert.False(t, d.IsTerminal())

	d.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	assert.True(t, d.IsExpired())

	for _, status := range []string{StatusOrdered, StatusCancelled, StatusFailed, StatusExpired, StatusUnreconciled} {
		d.Status = status
		assert.True(t, d.IsTerminal(), status)
	}
}
