package domain

import (
	"time"
)

// Checkout step constants. Steps are strictly ordered; a step can only be
// entered once every step before it has produced data.
const (
	StepShipping       = "shipping"
	StepShippingMethod = "shipping_method"
	StepBilling        = "billing"
	StepPayment        = "payment"
	StepReview         = "review"
)

// stepOrder fixes the linear progression of the checkout flow.
var stepOrder = []string{
	StepShipping,
	StepShippingMethod,
	StepBilling,
	StepPayment,
	StepReview,
}

// StepIndex returns the position of a step in the flow, or -1 for unknown steps.
func StepIndex(step string) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// IsValidStep checks whether the given string names a checkout step.
func IsValidStep(step string) bool {
	return StepIndex(step) >= 0
}

// Draft status constants.
const (
	StatusActive    = "active"
	StatusOrdered   = "ordered"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusExpired   = "expired"

	// StatusUnreconciled marks a draft whose settlement was confirmed by the
	// gateway but whose order commit failed. Requires manual reconciliation.
	StatusUnreconciled = "unreconciled"
)

// Address represents a shipping or billing address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ShippingMethod is one rate quoted by the shipping rate resolver.
type ShippingMethod struct {
	ID       string `json:"id"`
	MethodID string `json:"method_id"`
	Label    string `json:"label"`
	Cost     int64  `json:"cost"`
}

// CheckoutDraft is the mutable state of one checkout attempt. It is created
// empty when the shopper enters checkout, mutated only by the checkout flow in
// response to step submits, and discarded on successful order commit.
type CheckoutDraft struct {
	ID        string `json:"id"`
	ShopperID string `json:"shopper_id"`
	Status    string `json:"status"`
	Step      string `json:"step"`

	Items    []LineItem `json:"items"`
	Currency string     `json:"currency"`

	ShippingAddress       *Address `json:"shipping_address,omitempty"`
	BillingAddress        *Address `json:"billing_address,omitempty"`
	BillingSameAsShipping bool     `json:"billing_same_as_shipping"`

	ShippingMethod *ShippingMethod `json:"shipping_method,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	OrderNotes     string          `json:"order_notes,omitempty"`
	AppliedCoupon  *Coupon         `json:"applied_coupon,omitempty"`

	Settlement SettlementState `json:"settlement"`

	OrderID       string `json:"order_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	SubtotalAmount int64 `json:"subtotal_amount"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanEnter reports whether the draft may enter the given step: every step
// strictly before it must have produced valid, non-null data.
func (d *CheckoutDraft) CanEnter(step string) bool {
	idx := StepIndex(step)
	if idx < 0 {
		return false
	}
	if idx > StepIndex(StepShipping) && d.ShippingAddress == nil {
		return false
	}
	if idx > StepIndex(StepShippingMethod) && d.ShippingMethod == nil {
		return false
	}
	if idx > StepIndex(StepBilling) && d.BillingAddress == nil {
		return false
	}
	if idx > StepIndex(StepPayment) && d.PaymentMethod == "" {
		return false
	}
	return true
}

// DeriveBillingFromShipping copies the shipping address into the billing
// address. Optional fields that are missing default to empty strings rather
// than failing validation later.
func (d *CheckoutDraft) DeriveBillingFromShipping() {
	if d.ShippingAddress == nil {
		return
	}
	derived := *d.ShippingAddress
	d.BillingAddress = &derived
}

// CalculateSubtotal computes the subtotal from the items (unit price times
// quantity for each), in minor currency units.
func (d *CheckoutDraft) CalculateSubtotal() int64 {
	var subtotal int64
	for _, item := range d.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal
}

// ShippingCost returns the cost of the chosen method, or 0 when none is chosen.
func (d *CheckoutDraft) ShippingCost() int64 {
	if d.ShippingMethod == nil {
		return 0
	}
	return d.ShippingMethod.Cost
}

// DiscountAmount returns the clamped discount for the applied coupon against
// the current subtotal. Re-evaluated on every call, never cached, since the
// subtotal can change while a coupon stays applied.
func (d *CheckoutDraft) DiscountAmount() int64 {
	return CalculateDiscount(d.CalculateSubtotal(), d.AppliedCoupon)
}

// TotalAmount computes subtotal + shipping - discount in minor units.
func (d *CheckoutDraft) TotalAmount() int64 {
	return d.CalculateSubtotal() + d.ShippingCost() - d.DiscountAmount()
}

// IsExpired checks whether the draft has passed its expiry time.
func (d *CheckoutDraft) IsExpired() bool {
	return time.Now().UTC().After(d.ExpiresAt)
}

// IsTerminal returns true if the draft is in a final state.
func (d *CheckoutDraft) IsTerminal() bool {
	switch d.Status {
	case StatusOrdered, StatusCancelled, StatusFailed, StatusExpired, StatusUnreconciled:
		return true
	}
	return false
}
