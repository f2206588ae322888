package gate

import (
	"context"
	"fmt"

	"github.com/hazelmarket/checkout/internal/domain"
)

// Minimum order policies.
const (
	MinOrderDisabled = "disabled"
	MinOrderAdvise   = "advise"
	MinOrderBlock    = "block"
)

// MinimumOrderGate checks the draft subtotal against a configured floor.
// Under the advise policy a shortfall is reported as a violation on an
// otherwise valid outcome, so callers can warn without blocking.
type MinimumOrderGate struct {
	policy string
	amount int64
}

func NewMinimumOrderGate(policy string, amount int64) *MinimumOrderGate {
	return &MinimumOrderGate{policy: policy, amount: amount}
}

func (g *MinimumOrderGate) Check(_ context.Context, draft *domain.CheckoutDraft) (domain.ValidationOutcome, error) {
	if g.policy == MinOrderDisabled || g.amount <= 0 {
		return domain.OK(), nil
	}

	subtotal := draft.CalculateSubtotal()
	if subtotal >= g.amount {
		return domain.OK(), nil
	}

	v := domain.Violation{
		Message: fmt.Sprintf("order subtotal %d is below the minimum of %d", subtotal, g.amount),
	}
	if g.policy == MinOrderBlock {
		return domain.Blocked(v), nil
	}
	return domain.ValidationOutcome{Valid: true, Violations: []domain.Violation{v}}, nil
}
