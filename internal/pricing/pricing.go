// Package pricing resolves shipping rate quotes and assembles draft totals.
// All monetary values are integer minor units; the discount is derived from
// the live draft state on every call rather than stored.
package pricing

import (
	"context"
	"fmt"

	"github.com/hazelmarket/checkout/internal/domain"
)

// RateResolver quotes the shipping methods available for a destination and
// set of items.
type RateResolver interface {
	QuoteRates(ctx context.Context, address domain.Address, items []domain.LineItem) ([]domain.ShippingMethod, error)
}

// Summary is the priced breakdown of a draft, shown at review and used as
// the authoritative amount for settlement.
type Summary struct {
	Subtotal int64  `json:"subtotal"`
	Shipping int64  `json:"shipping"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// Resolver quotes shipping rates and prices drafts.
type Resolver struct {
	rates RateResolver
}

func NewResolver(rates RateResolver) *Resolver {
	return &Resolver{rates: rates}
}

// QuoteShippingMethods returns the methods a shopper can pick for the
// draft's shipping address.
func (r *Resolver) QuoteShippingMethods(ctx context.Context, draft *domain.CheckoutDraft) ([]domain.ShippingMethod, error) {
	if draft.ShippingAddress == nil {
		return nil, fmt.Errorf("draft %s has no shipping address", draft.ID)
	}
	methods, err := r.rates.QuoteRates(ctx, *draft.ShippingAddress, draft.Items)
	if err != nil {
		return nil, fmt.Errorf("quoting shipping rates: %w", err)
	}
	return methods, nil
}

// SelectMethod matches a quoted rate by its ID so that the cost recorded on
// the draft is the quoted one, not a client-supplied number.
func (r *Resolver) SelectMethod(ctx context.Context, draft *domain.CheckoutDraft, rateID string) (*domain.ShippingMethod, error) {
	methods, err := r.QuoteShippingMethods(ctx, draft)
	if err != nil {
		return nil, err
	}
	for i := range methods {
		if methods[i].ID == rateID {
			return &methods[i], nil
		}
	}
	return nil, nil
}

// Summarize prices the draft. Discount is clamped to the subtotal inside the
// domain calculation, so the total never goes below the shipping cost.
func Summarize(draft *domain.CheckoutDraft) Summary {
	return Summary{
		Subtotal: draft.CalculateSubtotal(),
		Shipping: draft.ShippingCost(),
		Discount: draft.DiscountAmount(),
		Total:    draft.TotalAmount(),
		Currency: draft.Currency,
	}
}
