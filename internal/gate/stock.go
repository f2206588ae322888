package gate

import (
	"context"
	"fmt"

	"github.com/hazelmarket/checkout/internal/domain"
)

// StockLevel is one product's availability as reported by inventory.
type StockLevel struct {
	ProductID string
	InStock   bool
	Available int
}

// StockResolver reports current availability for a set of products.
type StockResolver interface {
	StockLevels(ctx context.Context, productIDs []string) ([]StockLevel, error)
}

// StockGate re-checks availability of every line item. It runs at the final
// confirm so that stock drained while the shopper filled in the steps still
// blocks the order.
type StockGate struct {
	resolver StockResolver
}

func NewStockGate(resolver StockResolver) *StockGate {
	return &StockGate{resolver: resolver}
}

func (g *StockGate) Check(ctx context.Context, draft *domain.CheckoutDraft) (domain.ValidationOutcome, error) {
	ids := make([]string, 0, len(draft.Items))
	for _, item := range draft.Items {
		ids = append(ids, item.ProductID)
	}

	levels, err := g.resolver.StockLevels(ctx, ids)
	if err != nil {
		return domain.ValidationOutcome{}, fmt.Errorf("resolving stock levels: %w", err)
	}

	byID := make(map[string]StockLevel, len(levels))
	for _, lvl := range levels {
		byID[lvl.ProductID] = lvl
	}

	var violations []domain.Violation
	for _, item := range draft.Items {
		lvl, known := byID[item.ProductID]
		switch {
		case !known || !lvl.InStock:
			violations = append(violations, domain.Violation{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Message:     fmt.Sprintf("%s is out of stock", item.Name),
			})
		case lvl.Available < item.Quantity:
			violations = append(violations, domain.Violation{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Message:     fmt.Sprintf("only %d of %s left", lvl.Available, item.Name),
			})
		}
	}
	if len(violations) > 0 {
		return domain.Blocked(violations...), nil
	}
	return domain.OK(), nil
}
