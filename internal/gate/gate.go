// Package gate holds the validation gates a checkout draft must pass before
// it can progress or convert into an order. Each gate is independent and
// returns a ValidationOutcome describing any violations.
package gate

import (
	"context"

	"github.com/hazelmarket/checkout/internal/domain"
)

// Gate validates one aspect of a draft against live collaborator state.
type Gate interface {
	Check(ctx context.Context, draft *domain.CheckoutDraft) (domain.ValidationOutcome, error)
}
