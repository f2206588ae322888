package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hazelmarket/checkout/internal/domain"
	"github.com/hazelmarket/checkout/pkg/database"
	apperrors "github.com/hazelmarket/checkout/pkg/errors"
)

const draftColumns = `id, shopper_id, status, step, items, currency,
		shipping_address, billing_address, billing_same_as_shipping,
		shipping_method, payment_method, order_notes, applied_coupon,
		settlement_status, settlement_ref, settlement_secret, settlement_amount,
		order_id, failure_reason, subtotal_amount,
		expires_at, created_at, updated_at`

// DraftRepository implements repository.DraftRepository using PostgreSQL.
type DraftRepository struct {
	db database.DBTX
}

// NewDraftRepository creates a new PostgreSQL-backed draft repository.
func NewDraftRepository(db database.DBTX) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create inserts a new checkout draft into the database.
func (r *DraftRepository) Create(ctx context.Context, draft *domain.CheckoutDraft) error {
	itemsJSON, shippingJSON, billingJSON, methodJSON, couponJSON, err := marshalFields(draft)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO checkout_drafts (` + draftColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23
		)`

	_, err = r.db.Exec(ctx, query,
		draft.ID,
		draft.ShopperID,
		draft.Status,
		draft.Step,
		itemsJSON,
		draft.Currency,
		shippingJSON,
		billingJSON,
		draft.BillingSameAsShipping,
		methodJSON,
		nullableString(draft.PaymentMethod),
		nullableString(draft.OrderNotes),
		couponJSON,
		draft.Settlement.Status,
		nullableString(draft.Settlement.Ref),
		nullableString(draft.Settlement.ClientSecret),
		draft.Settlement.Amount,
		nullableString(draft.OrderID),
		nullableString(draft.FailureReason),
		draft.SubtotalAmount,
		draft.ExpiresAt,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout draft: %w", err)
	}

	return nil
}

// GetByID retrieves a checkout draft by its ID.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*domain.CheckoutDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM checkout_drafts
		WHERE id = $1`

	return r.scanDraft(ctx, query, id)
}

// Update modifies an existing checkout draft in the database.
func (r *DraftRepository) Update(ctx context.Context, draft *domain.CheckoutDraft) error {
	itemsJSON, shippingJSON, billingJSON, methodJSON, couponJSON, err := marshalFields(draft)
	if err != nil {
		return err
	}

	draft.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE checkout_drafts
		SET status = $1, step = $2, items = $3, currency = $4,
			shipping_address = $5, billing_address = $6, billing_same_as_shipping = $7,
			shipping_method = $8, payment_method = $9, order_notes = $10, applied_coupon = $11,
			settlement_status = $12, settlement_ref = $13, settlement_secret = $14,
			settlement_amount = $15,
			order_id = $16, failure_reason = $17, subtotal_amount = $18,
			expires_at = $19, updated_at = $20
		WHERE id = $21`

	ct, err := r.db.Exec(ctx, query,
		draft.Status,
		draft.Step,
		itemsJSON,
		draft.Currency,
		shippingJSON,
		billingJSON,
		draft.BillingSameAsShipping,
		methodJSON,
		nullableString(draft.PaymentMethod),
		nullableString(draft.OrderNotes),
		couponJSON,
		draft.Settlement.Status,
		nullableString(draft.Settlement.Ref),
		nullableString(draft.Settlement.ClientSecret),
		draft.Settlement.Amount,
		nullableString(draft.OrderID),
		nullableString(draft.FailureReason),
		draft.SubtotalAmount,
		draft.ExpiresAt,
		draft.UpdatedAt,
		draft.ID,
	)
	if err != nil {
		return fmt.Errorf("update checkout draft: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("checkout_draft", draft.ID)
	}

	return nil
}

// GetActiveByShopperID retrieves the active draft for a shopper.
func (r *DraftRepository) GetActiveByShopperID(ctx context.Context, shopperID string) (*domain.CheckoutDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM checkout_drafts
		WHERE shopper_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanDraft(ctx, query, shopperID)
}

// GetBySettlementRef retrieves the draft tied to a settlement reference.
func (r *DraftRepository) GetBySettlementRef(ctx context.Context, ref string) (*domain.CheckoutDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM checkout_drafts
		WHERE settlement_ref = $1`

	return r.scanDraft(ctx, query, ref)
}

// ListExpired returns drafts whose expiry passed before the given time.
func (r *DraftRepository) ListExpired(ctx context.Context, before time.Time) ([]domain.CheckoutDraft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM checkout_drafts
		WHERE expires_at < $1 AND status = 'active'
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list expired drafts: %w", err)
	}
	defer rows.Close()

	var drafts []domain.CheckoutDraft
	for rows.Next() {
		draft, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired draft row: %w", err)
		}
		drafts = append(drafts, *draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired draft rows: %w", err)
	}

	if drafts == nil {
		drafts = []domain.CheckoutDraft{}
	}

	return drafts, nil
}

// scanDraft executes a query expected to return a single draft row.
func (r *DraftRepository) scanDraft(ctx context.Context, query string, args ...any) (*domain.CheckoutDraft, error) {
	row := r.db.QueryRow(ctx, query, args...)
	draft, err := scanInto(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return draft, nil
}

func scanRow(rows pgx.Rows) (*domain.CheckoutDraft, error) {
	return scanInto(rows.Scan)
}

func scanInto(scan func(dest ...any) error) (*domain.CheckoutDraft, error) {
	var (
		draft            domain.CheckoutDraft
		itemsJSON        []byte
		shippingJSON     []byte
		billingJSON      []byte
		methodJSON       []byte
		couponJSON       []byte
		paymentMethod    *string
		orderNotes       *string
		settlementRef    *string
		settlementSecret *string
		orderID          *string
		failureReason    *string
	)

	if err := scan(
		&draft.ID,
		&draft.ShopperID,
		&draft.Status,
		&draft.Step,
		&itemsJSON,
		&draft.Currency,
		&shippingJSON,
		&billingJSON,
		&draft.BillingSameAsShipping,
		&methodJSON,
		&paymentMethod,
		&orderNotes,
		&couponJSON,
		&draft.Settlement.Status,
		&settlementRef,
		&settlementSecret,
		&draft.Settlement.Amount,
		&orderID,
		&failureReason,
		&draft.SubtotalAmount,
		&draft.ExpiresAt,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan checkout draft: %w", err)
	}

	if err := unmarshalFields(&draft, itemsJSON, shippingJSON, billingJSON, methodJSON, couponJSON); err != nil {
		return nil, err
	}

	if paymentMethod != nil {
		draft.PaymentMethod = *paymentMethod
	}
	if orderNotes != nil {
		draft.OrderNotes = *orderNotes
	}
	if settlementRef != nil {
		draft.Settlement.Ref = *settlementRef
	}
	if settlementSecret != nil {
		draft.Settlement.ClientSecret = *settlementSecret
	}
	if orderID != nil {
		draft.OrderID = *orderID
	}
	if failureReason != nil {
		draft.FailureReason = *failureReason
	}

	return &draft, nil
}

func marshalFields(draft *domain.CheckoutDraft) (items, shipping, billing, method, coupon []byte, err error) {
	if items, err = json.Marshal(draft.Items); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal items: %w", err)
	}
	if shipping, err = json.Marshal(draft.ShippingAddress); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	if billing, err = json.Marshal(draft.BillingAddress); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal billing address: %w", err)
	}
	if method, err = json.Marshal(draft.ShippingMethod); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal shipping method: %w", err)
	}
	if coupon, err = json.Marshal(draft.AppliedCoupon); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal applied coupon: %w", err)
	}
	return items, shipping, billing, method, coupon, nil
}

func unmarshalFields(draft *domain.CheckoutDraft, itemsJSON, shippingJSON, billingJSON, methodJSON, couponJSON []byte) error {
	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &draft.Items); err != nil {
			return fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if draft.Items == nil {
		draft.Items = []domain.LineItem{}
	}

	if notNull(shippingJSON) {
		var addr domain.Address
		if err := json.Unmarshal(shippingJSON, &addr); err != nil {
			return fmt.Errorf("unmarshal shipping address: %w", err)
		}
		draft.ShippingAddress = &addr
	}

	if notNull(billingJSON) {
		var addr domain.Address
		if err := json.Unmarshal(billingJSON, &addr); err != nil {
			return fmt.Errorf("unmarshal billing address: %w", err)
		}
		draft.BillingAddress = &addr
	}

	if notNull(methodJSON) {
		var method domain.ShippingMethod
		if err := json.Unmarshal(methodJSON, &method); err != nil {
			return fmt.Errorf("unmarshal shipping method: %w", err)
		}
		draft.ShippingMethod = &method
	}

	if notNull(couponJSON) {
		var coupon domain.Coupon
		if err := json.Unmarshal(couponJSON, &coupon); err != nil {
			return fmt.Errorf("unmarshal applied coupon: %w", err)
		}
		draft.AppliedCoupon = &coupon
	}

	return nil
}

func notNull(data []byte) bool {
	return data != nil && string(data) != "null"
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
