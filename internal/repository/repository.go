package repository

import (
	"context"
	"time"

	"github.com/hazelmarket/checkout/internal/domain"
)

// DraftRepository defines the interface for checkout draft persistence.
type DraftRepository interface {
	// Create inserts a new checkout draft into the store.
	Create(ctx context.Context, draft *domain.CheckoutDraft) error

	// GetByID retrieves a checkout draft by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.CheckoutDraft, error)

	// Update modifies an existing checkout draft in the store.
	Update(ctx context.Context, draft *domain.CheckoutDraft) error

	// GetActiveByShopperID retrieves the active draft for a shopper, if any.
	GetActiveByShopperID(ctx context.Context, shopperID string) (*domain.CheckoutDraft, error)

	// GetBySettlementRef retrieves the draft tied to a settlement reference.
	// Used to answer replayed gateway returns idempotently.
	GetBySettlementRef(ctx context.Context, ref string) (*domain.CheckoutDraft, error)

	// ListExpired returns drafts whose expiry passed before the given time
	// and that are not yet in a terminal status.
	ListExpired(ctx context.Context, before time.Time) ([]domain.CheckoutDraft, error)
}
