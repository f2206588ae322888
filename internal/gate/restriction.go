package gate

import (
	"context"
	"fmt"

	"github.com/hazelmarket/checkout/internal/domain"
)

// RestrictionResolver reports which products in a draft cannot ship to a
// destination country.
type RestrictionResolver interface {
	RestrictedProducts(ctx context.Context, country string, productIDs []string) ([]string, error)
}

// ShippingRestrictionGate blocks drafts containing products that cannot be
// shipped to the chosen destination. It only fires once a shipping address
// is known.
type ShippingRestrictionGate struct {
	resolver RestrictionResolver
}

func NewShippingRestrictionGate(resolver RestrictionResolver) *ShippingRestrictionGate {
	return &ShippingRestrictionGate{resolver: resolver}
}

func (g *ShippingRestrictionGate) Check(ctx context.Context, draft *domain.CheckoutDraft) (domain.ValidationOutcome, error) {
	if draft.ShippingAddress == nil {
		return domain.OK(), nil
	}

	ids := make([]string, 0, len(draft.Items))
	for _, item := range draft.Items {
		ids = append(ids, item.ProductID)
	}

	restricted, err := g.resolver.RestrictedProducts(ctx, draft.ShippingAddress.Country, ids)
	if err != nil {
		return domain.ValidationOutcome{}, fmt.Errorf("resolving shipping restrictions: %w", err)
	}
	if len(restricted) == 0 {
		return domain.OK(), nil
	}

	names := make(map[string]string, len(draft.Items))
	for _, item := range draft.Items {
		names[item.ProductID] = item.Name
	}

	violations := make([]domain.Violation, 0, len(restricted))
	for _, id := range restricted {
		violations = append(violations, domain.Violation{
			ProductID:   id,
			ProductName: names[id],
			Message:     fmt.Sprintf("%s cannot be shipped to %s", names[id], draft.ShippingAddress.Country),
		})
	}
	return domain.Blocked(violations...), nil
}
