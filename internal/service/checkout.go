package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazelmarket/checkout/internal/client"
	"github.com/hazelmarket/checkout/internal/domain"
	"github.com/hazelmarket/checkout/internal/gate"
	"github.com/hazelmarket/checkout/internal/pricing"
	"github.com/hazelmarket/checkout/internal/recovery"
	"github.com/hazelmarket/checkout/internal/repository"
	apperrors "github.com/hazelmarket/checkout/pkg/errors"
)

const draftExpiryDuration = 30 * time.Minute

// Gateway intent statuses we act on when resuming a redirect.
const (
	intentSucceeded  = "succeeded"
	intentProcessing = "processing"
)

// CartStore is the cart service surface checkout needs. The cart stays the
// source of truth for what the shopper is buying until an order commits.
type CartStore interface {
	Snapshot(ctx context.Context, shopperID string) (*domain.CartSnapshot, error)
	SetShippingAddress(ctx context.Context, shopperID string, addr domain.Address) error
	Clear(ctx context.Context, shopperID string) error
}

// PaymentGateway opens and inspects payment intents.
type PaymentGateway interface {
	OpenIntent(ctx context.Context, draftID string, amount int64, currency string, buyer *domain.Address) (*domain.SettlementIntent, error)
	IntentStatus(ctx context.Context, intentID string) (string, error)
}

// CommerceBackend owns orders and coupons.
type CommerceBackend interface {
	LookupCoupon(ctx context.Context, code string) (*domain.Coupon, error)
	CreateOrder(ctx context.Context, req client.OrderRequest) (string, error)
}

// EventPublisher emits checkout lifecycle events. Publishing is advisory:
// callers log failures and never propagate them.
type EventPublisher interface {
	PublishCheckoutStarted(ctx context.Context, draft *domain.CheckoutDraft) error
	PublishCheckoutCompleted(ctx context.Context, draft *domain.CheckoutDraft) error
	PublishCheckoutFailed(ctx context.Context, draft *domain.CheckoutDraft) error
	PublishCheckoutUnreconciled(ctx context.Context, draft *domain.CheckoutDraft) error
}

// RecoveryStore persists the intent-to-draft link across a gateway redirect.
type RecoveryStore interface {
	Put(ctx context.Context, rec recovery.Record) error
	Take(ctx context.Context, intentRef string) (*recovery.Record, error)
	Restore(ctx context.Context, rec recovery.Record) error
	Clear(ctx context.Context, intentRef string) error
}

// StepTimeouts holds per-collaborator timeout configuration. A zero value
// means no per-call timeout (inherits the parent context deadline).
type StepTimeouts struct {
	StockTimeout  time.Duration
	RatesTimeout  time.Duration
	IntentTimeout time.Duration
	CommitTimeout time.Duration
}

// CheckoutService drives the checkout flow: a linear sequence of steps, a
// set of validation gates, and two settlement paths into the same idempotent
// order commit.
type CheckoutService struct {
	repo            repository.DraftRepository
	producer        EventPublisher
	logger          *slog.Logger
	cart            CartStore
	gateway         PaymentGateway
	commerce        CommerceBackend
	recovery        RecoveryStore
	pricer          *pricing.Resolver
	restrictionGate gate.Gate
	stockGate       gate.Gate
	minOrderGate    gate.Gate
	deferredMethods []string
	timeouts        StepTimeouts
}

// Deps bundles the collaborators of the checkout service.
type Deps struct {
	Repo            repository.DraftRepository
	Producer        EventPublisher
	Logger          *slog.Logger
	Cart            CartStore
	Gateway         PaymentGateway
	Commerce        CommerceBackend
	Recovery        RecoveryStore
	Pricer          *pricing.Resolver
	RestrictionGate gate.Gate
	StockGate       gate.Gate
	MinOrderGate    gate.Gate
	DeferredMethods []string
	Timeouts        StepTimeouts
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps Deps) *CheckoutService {
	return &CheckoutService{
		repo:            deps.Repo,
		producer:        deps.Producer,
		logger:          deps.Logger,
		cart:            deps.Cart,
		gateway:         deps.Gateway,
		commerce:        deps.Commerce,
		recovery:        deps.Recovery,
		pricer:          deps.Pricer,
		restrictionGate: deps.RestrictionGate,
		stockGate:       deps.StockGate,
		minOrderGate:    deps.MinOrderGate,
		deferredMethods: deps.DeferredMethods,
		timeouts:        deps.Timeouts,
	}
}

// SubmitShippingInput carries the shipping step payload. SameAsShipping
// derives the billing address from the shipping address, letting the shopper
// skip the billing step.
type SubmitShippingInput struct {
	Address        domain.Address `json:"address" validate:"required"`
	SameAsShipping bool           `json:"same_as_shipping"`
}

// SubmitBillingInput carries the billing step payload. When SameAsShipping
// is set the address is derived from the shipping address and Address is
// ignored.
type SubmitBillingInput struct {
	SameAsShipping bool            `json:"same_as_shipping"`
	Address        *domain.Address `json:"address,omitempty"`
}

// SubmitPaymentInput carries the payment step payload.
type SubmitPaymentInput struct {
	MethodTag  string `json:"method_tag" validate:"required"`
	OrderNotes string `json:"order_notes,omitempty" validate:"max=1000"`
}

// ConfirmResult is the outcome of a confirm or resume call. Either OrderID
// is set (the order exists) or RequiresAction is true and the shopper has to
// complete the payment with the gateway using ClientSecret.
type ConfirmResult struct {
	Draft          *domain.CheckoutDraft `json:"draft"`
	OrderID        string                `json:"order_id,omitempty"`
	RequiresAction bool                  `json:"requires_action"`
	ClientSecret   string                `json:"client_secret,omitempty"`
	SettlementRef  string                `json:"settlement_ref,omitempty"`
}

// SummaryView is the priced breakdown plus any advisory warnings.
type SummaryView struct {
	pricing.Summary
	Warnings []string `json:"warnings,omitempty"`
}

// Start begins a checkout for the shopper's current cart. If an active draft
// already exists it is resumed instead of replaced, so a page reload does not
// lose entered data.
func (s *CheckoutService) Start(ctx context.Context, shopperID string) (*domain.CheckoutDraft, error) {
	if shopperID == "" {
		return nil, apperrors.InvalidInput("shopper id is required")
	}

	if existing, err := s.repo.GetActiveByShopperID(ctx, shopperID); err == nil && !existing.IsExpired() {
		s.logger.InfoContext(ctx, "resuming active checkout draft",
			slog.String("draft_id", existing.ID),
			slog.String("shopper_id", shopperID),
		)
		return existing, nil
	}

	snapshot, err := s.cart.Snapshot(ctx, shopperID)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	if snapshot.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	now := time.Now().UTC()
	draft := &domain.CheckoutDraft{
		ID:         uuid.New().String(),
		ShopperID:  shopperID,
		Status:     domain.StatusActive,
		Step:       domain.StepShipping,
		Items:      snapshot.Items,
		Currency:   snapshot.Currency,
		Settlement: domain.NoSettlement(),
		ExpiresAt:  now.Add(draftExpiryDuration),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	draft.SubtotalAmount = draft.CalculateSubtotal()

	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, fmt.Errorf("create checkout draft: %w", err)
	}

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishCheckoutStarted(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.started event",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout draft started",
		slog.String("draft_id", draft.ID),
		slog.String("shopper_id", shopperID),
		slog.Int64("subtotal_amount", draft.SubtotalAmount),
	)

	return draft, nil
}

// Get retrieves a draft owned by the shopper.
func (s *CheckoutService) Get(ctx context.Context, draftID, shopperID string) (*domain.CheckoutDraft, error) {
	draft, err := s.repo.GetByID(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("get checkout draft: %w", err)
	}
	if draft.ShopperID != shopperID {
		return nil, apperrors.NotFound("checkout_draft", draftID)
	}
	return draft, nil
}

// loadActive fetches a draft, enforces ownership and rejects expired or
// terminal drafts. An expired draft is marked as such on the way out.
func (s *CheckoutService) loadActive(ctx context.Context, draftID, shopperID string) (*domain.CheckoutDraft, error) {
	draft, err := s.Get(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	if draft.IsTerminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("checkout draft is %s", draft.Status))
	}

	if draft.IsExpired() {
		draft.Status = domain.StatusExpired
		if err := s.repo.Update(ctx, draft); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark draft expired",
				slog.String("draft_id", draft.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.Gone("checkout draft has expired")
	}

	return draft, nil
}

// SubmitShipping records the shipping address and advances to the shipping
// method step. The destination is checked against shipping restrictions
// before the draft can move on.
func (s *CheckoutService) SubmitShipping(ctx context.Context, draftID, shopperID string, input *SubmitShippingInput) (*domain.CheckoutDraft, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("shipping input is required")
	}
	if err := validateAddress(&input.Address); err != nil {
		return nil, err
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	addr := input.Address
	draft.ShippingAddress = &addr

	outcome, err := s.restrictionGate.Check(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("check shipping restrictions: %w", err)
	}
	if !outcome.Valid {
		return nil, blockedError(outcome)
	}

	// A new destination invalidates any previously chosen rate and any
	// billing address that was derived from the old shipping address.
	draft.ShippingMethod = nil
	draft.BillingSameAsShipping = input.SameAsShipping
	if input.SameAsShipping {
		draft.DeriveBillingFromShipping()
	}
	draft.FailureReason = ""
	draft.Step = domain.StepShippingMethod

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with shipping address: %w", err)
	}

	// Mirror the destination onto the cart so tax and estimate lookups made
	// outside checkout agree with it. Best effort.
	if err := s.cart.SetShippingAddress(ctx, shopperID, addr); err != nil {
		s.logger.WarnContext(ctx, "failed to mirror shipping address to cart",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "shipping address submitted",
		slog.String("draft_id", draft.ID),
		slog.String("country", addr.Country),
	)

	return draft, nil
}

// QuoteShippingMethods returns the rates available for the draft's
// destination.
func (s *CheckoutService) QuoteShippingMethods(ctx context.Context, draftID, shopperID string) ([]domain.ShippingMethod, error) {
	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}
	if !draft.CanEnter(domain.StepShippingMethod) {
		return nil, apperrors.Conflict("shipping address must be submitted first")
	}

	ctx, cancel := s.withTimeout(ctx, s.timeouts.RatesTimeout)
	defer cancel()

	methods, err := s.pricer.QuoteShippingMethods(ctx, draft)
	if err != nil {
		return nil, err
	}
	return methods, nil
}

// SubmitShippingMethod records the chosen rate and advances to billing. The
// rate is re-quoted server side so the recorded cost is the quoted one.
func (s *CheckoutService) SubmitShippingMethod(ctx context.Context, draftID, shopperID, rateID string) (*domain.CheckoutDraft, error) {
	if rateID == "" {
		return nil, apperrors.InvalidInput("rate id is required")
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}
	if !draft.CanEnter(domain.StepShippingMethod) {
		return nil, apperrors.Conflict("shipping address must be submitted first")
	}

	quoteCtx, cancel := s.withTimeout(ctx, s.timeouts.RatesTimeout)
	defer cancel()

	method, err := s.pricer.SelectMethod(quoteCtx, draft, rateID)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, apperrors.InvalidInput("unknown shipping rate: " + rateID)
	}

	draft.ShippingMethod = method
	if draft.BillingSameAsShipping && draft.BillingAddress != nil {
		// Billing was already derived from the shipping address.
		draft.Step = domain.StepPayment
	} else {
		draft.Step = domain.StepBilling
	}

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with shipping method: %w", err)
	}

	s.logger.InfoContext(ctx, "shipping method submitted",
		slog.String("draft_id", draft.ID),
		slog.String("method_id", method.MethodID),
		slog.Int64("cost", method.Cost),
	)

	return draft, nil
}

// SubmitBilling records the billing address and advances to payment.
func (s *CheckoutService) SubmitBilling(ctx context.Context, draftID, shopperID string, input *SubmitBillingInput) (*domain.CheckoutDraft, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("billing input is required")
	}
	if !input.SameAsShipping {
		if input.Address == nil {
			return nil, apperrors.InvalidInput("billing address is required when not same as shipping")
		}
		if err := validateAddress(input.Address); err != nil {
			return nil, err
		}
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}
	if !draft.CanEnter(domain.StepBilling) {
		return nil, apperrors.Conflict("shipping steps must be completed first")
	}

	draft.BillingSameAsShipping = input.SameAsShipping
	if input.SameAsShipping {
		draft.DeriveBillingFromShipping()
	} else {
		addr := *input.Address
		draft.BillingAddress = &addr
	}
	draft.Step = domain.StepPayment

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with billing address: %w", err)
	}

	return draft, nil
}

// SubmitPayment records the chosen payment method and advances to review.
func (s *CheckoutService) SubmitPayment(ctx context.Context, draftID, shopperID string, input *SubmitPaymentInput) (*domain.CheckoutDraft, error) {
	if input == nil || input.MethodTag == "" {
		return nil, apperrors.InvalidInput("payment method is required")
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}
	if !draft.CanEnter(domain.StepPayment) {
		return nil, apperrors.Conflict("earlier checkout steps must be completed first")
	}

	draft.PaymentMethod = input.MethodTag
	draft.OrderNotes = input.OrderNotes
	draft.Step = domain.StepReview

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with payment method: %w", err)
	}

	s.logger.InfoContext(ctx, "payment method submitted",
		slog.String("draft_id", draft.ID),
		slog.String("method_tag", input.MethodTag),
	)

	return draft, nil
}

// ApplyCoupon attaches a coupon to the draft. The discount itself is always
// derived from the live subtotal, so there is nothing to recompute here.
func (s *CheckoutService) ApplyCoupon(ctx context.Context, draftID, shopperID, code string) (*domain.CheckoutDraft, error) {
	if code == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.commerce.LookupCoupon(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("look up coupon: %w", err)
	}
	if coupon == nil {
		return nil, apperrors.NotFound("coupon", code)
	}

	draft.AppliedCoupon = coupon

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with coupon: %w", err)
	}

	s.logger.InfoContext(ctx, "coupon applied",
		slog.String("draft_id", draft.ID),
		slog.String("code", coupon.Code),
		slog.Int64("discount", draft.DiscountAmount()),
	)

	return draft, nil
}

// RemoveCoupon detaches the applied coupon, if any.
func (s *CheckoutService) RemoveCoupon(ctx context.Context, draftID, shopperID string) (*domain.CheckoutDraft, error) {
	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	if draft.AppliedCoupon == nil {
		return draft, nil
	}
	draft.AppliedCoupon = nil

	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft without coupon: %w", err)
	}

	return draft, nil
}

// Summary prices the draft. Advisory gate findings, such as a subtotal under
// the configured minimum, surface as warnings without blocking.
func (s *CheckoutService) Summary(ctx context.Context, draftID, shopperID string) (*SummaryView, error) {
	draft, err := s.Get(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	view := &SummaryView{Summary: pricing.Summarize(draft)}

	outcome, err := s.minOrderGate.Check(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("check minimum order: %w", err)
	}
	if outcome.Valid {
		for _, v := range outcome.Violations {
			view.Warnings = append(view.Warnings, v.Message)
		}
	}

	return view, nil
}

// Back moves the draft to an earlier step. Data entered for later steps is
// kept, so going forward again does not re-ask for it.
func (s *CheckoutService) Back(ctx context.Context, draftID, shopperID, step string) (*domain.CheckoutDraft, error) {
	if !domain.IsValidStep(step) {
		return nil, apperrors.InvalidInput("unknown checkout step: " + step)
	}

	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	if domain.StepIndex(step) > domain.StepIndex(draft.Step) {
		return nil, apperrors.Conflict("cannot skip forward to " + step)
	}

	draft.Step = step
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft step: %w", err)
	}

	return draft, nil
}

// Cancel abandons the draft. The cart is untouched, so the shopper can start
// over. An open payment intent's recovery record is dropped.
func (s *CheckoutService) Cancel(ctx context.Context, draftID, shopperID string) (*domain.CheckoutDraft, error) {
	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}

	if draft.Settlement.IsOpen() {
		if err := s.recovery.Clear(ctx, draft.Settlement.Ref); err != nil {
			s.logger.WarnContext(ctx, "failed to clear recovery record on cancel",
				slog.String("draft_id", draft.ID),
				slog.String("settlement_ref", draft.Settlement.Ref),
				slog.String("error", err.Error()),
			)
		}
	}

	draft.Status = domain.StatusCancelled
	draft.FailureReason = "cancelled by shopper"
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("cancel draft: %w", err)
	}

	if err := s.producer.PublishCheckoutFailed(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout draft cancelled",
		slog.String("draft_id", draft.ID),
		slog.String("shopper_id", shopperID),
	)

	return draft, nil
}

// ConfirmOrder converts a completed draft into an order. Deferred methods
// commit the order immediately as unpaid. Gateway methods open a payment
// intent first and the commit happens later in ResumeSettlement.
func (s *CheckoutService) ConfirmOrder(ctx context.Context, draftID, shopperID string) (*ConfirmResult, error) {
	draft, err := s.loadActive(ctx, draftID, shopperID)
	if err != nil {
		return nil, err
	}
	if !draft.CanEnter(domain.StepReview) {
		return nil, apperrors.Conflict("checkout steps are incomplete")
	}

	minOut, err := s.minOrderGate.Check(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("check minimum order: %w", err)
	}
	if !minOut.Valid {
		return nil, blockedError(minOut)
	}

	stockCtx, cancel := s.withTimeout(ctx, s.timeouts.StockTimeout)
	stockOut, err := s.stockGate.Check(stockCtx, draft)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}
	if !stockOut.Valid {
		return nil, blockedError(stockOut)
	}

	switch domain.ProtocolFor(draft.PaymentMethod, s.deferredMethods) {
	case domain.ProtocolDeferred:
		return s.confirmDeferred(ctx, draft)
	default:
		return s.confirmGateway(ctx, draft)
	}
}

// confirmDeferred commits the order right away with set_paid false. Payment
// is collected out of band, on delivery or by transfer.
func (s *CheckoutService) confirmDeferred(ctx context.Context, draft *domain.CheckoutDraft) (*ConfirmResult, error) {
	orderID, err := s.commitOrder(ctx, draft, false, "")
	if err != nil {
		return nil, fmt.Errorf("commit deferred order: %w", err)
	}

	s.finishOrdered(ctx, draft, orderID)

	return &ConfirmResult{Draft: draft, OrderID: orderID}, nil
}

// confirmGateway opens a payment intent for the draft total and persists the
// recovery record before handing the shopper to the gateway. If an intent is
// already open it is reused rather than charging twice.
func (s *CheckoutService) confirmGateway(ctx context.Context, draft *domain.CheckoutDraft) (*ConfirmResult, error) {
	total := draft.TotalAmount()

	if draft.Settlement.IsOpen() {
		if draft.Settlement.Amount == total {
			rec := recoveryRecord(draft, draft.Settlement.Ref)
			if err := s.recovery.Put(ctx, rec); err != nil {
				return nil, fmt.Errorf("refresh recovery record: %w", err)
			}
			return &ConfirmResult{
				Draft:          draft,
				RequiresAction: true,
				ClientSecret:   draft.Settlement.ClientSecret,
				SettlementRef:  draft.Settlement.Ref,
			}, nil
		}

		// The total changed while an intent was open, so reusing it would
		// charge a different amount than the draft now owes. The old intent
		// is abandoned unconfirmed and a new one opened for the current
		// total. Its recovery record must go with it, or a late return on
		// the old reference would resume against the wrong amount.
		if err := s.recovery.Clear(ctx, draft.Settlement.Ref); err != nil {
			s.logger.WarnContext(ctx, "failed to clear recovery record for abandoned intent",
				slog.String("draft_id", draft.ID),
				slog.String("settlement_ref", draft.Settlement.Ref),
				slog.String("error", err.Error()),
			)
		}
		s.logger.InfoContext(ctx, "reopening settlement intent for changed total",
			slog.String("draft_id", draft.ID),
			slog.String("settlement_ref", draft.Settlement.Ref),
			slog.Int64("opened_amount", draft.Settlement.Amount),
			slog.Int64("current_total", total),
		)
	}

	intentCtx, cancel := s.withTimeout(ctx, s.timeouts.IntentTimeout)
	defer cancel()

	intent, err := s.gateway.OpenIntent(intentCtx, draft.ID, total, draft.Currency, draft.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("open payment intent: %w", err)
	}

	draft.Settlement = domain.PendingSettlement(intent.ReferenceID, intent.ClientSecret, intent.AmountMinorUnits)
	if err := s.repo.Update(ctx, draft); err != nil {
		return nil, fmt.Errorf("update draft with settlement: %w", err)
	}

	// The recovery record must exist before the redirect. The shopper may
	// come back on a fresh session with nothing but the return URL.
	if err := s.recovery.Put(ctx, recoveryRecord(draft, intent.ReferenceID)); err != nil {
		return nil, fmt.Errorf("persist recovery record: %w", err)
	}

	s.logger.InfoContext(ctx, "gateway settlement opened",
		slog.String("draft_id", draft.ID),
		slog.String("settlement_ref", intent.ReferenceID),
		slog.Int64("amount", total),
	)

	return &ConfirmResult{
		Draft:          draft,
		RequiresAction: true,
		ClientSecret:   intent.ClientSecret,
		SettlementRef:  intent.ReferenceID,
	}, nil
}

// ResumeSettlement completes a gateway flow after the shopper returns from
// the redirect. The recovery record is consumed read once, so a replayed
// return URL cannot commit a second order.
func (s *CheckoutService) ResumeSettlement(ctx context.Context, settlementRef string) (*ConfirmResult, error) {
	if settlementRef == "" {
		return nil, apperrors.InvalidInput("settlement reference is required")
	}

	rec, err := s.recovery.Take(ctx, settlementRef)
	if err != nil {
		return nil, fmt.Errorf("take recovery record: %w", err)
	}
	if rec == nil {
		return s.answerReplayedReturn(ctx, settlementRef)
	}

	draft, err := s.repo.GetByID(ctx, rec.DraftID)
	if err != nil {
		return nil, fmt.Errorf("get draft for settlement: %w", err)
	}

	status, err := s.gateway.IntentStatus(ctx, settlementRef)
	if err != nil {
		// Do not lose the record over a transient gateway read failure.
		if restoreErr := s.recovery.Restore(ctx, *rec); restoreErr != nil {
			s.logger.ErrorContext(ctx, "failed to restore recovery record",
				slog.String("settlement_ref", settlementRef),
				slog.String("error", restoreErr.Error()),
			)
		}
		return nil, fmt.Errorf("read intent status: %w", err)
	}

	switch status {
	case intentSucceeded:
		// Fall through to the commit below.
	case intentProcessing:
		if err := s.recovery.Restore(ctx, *rec); err != nil {
			s.logger.ErrorContext(ctx, "failed to restore recovery record",
				slog.String("settlement_ref", settlementRef),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.Conflict("payment is still processing, retry shortly")
	default:
		// The charge did not happen. The draft returns to the payment step
		// and the shopper can try another method. Cart and entered data are
		// intact.
		draft.Settlement = domain.NoSettlement()
		draft.Step = domain.StepPayment
		draft.FailureReason = "payment was not completed"
		if err := s.repo.Update(ctx, draft); err != nil {
			return nil, fmt.Errorf("update draft after failed payment: %w", err)
		}
		if err := s.producer.PublishCheckoutFailed(ctx, draft); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
				slog.String("draft_id", draft.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.PaymentFailed("payment was not completed")
	}

	if rec.Amount != draft.TotalAmount() {
		// The draft changed between intent and return. Refuse to commit an
		// order for a different amount than was charged.
		s.logger.ErrorContext(ctx, "settlement amount no longer matches draft total",
			slog.String("draft_id", draft.ID),
			slog.Int64("charged", rec.Amount),
			slog.Int64("draft_total", draft.TotalAmount()),
		)
		return nil, s.markUnreconciled(ctx, draft, settlementRef,
			fmt.Errorf("charged amount %d does not match draft total %d", rec.Amount, draft.TotalAmount()))
	}

	orderID, err := s.commitOrder(ctx, draft, true, settlementRef)
	if err != nil {
		return nil, s.markUnreconciled(ctx, draft, settlementRef, err)
	}

	draft.Settlement = domain.ConfirmedSettlement(settlementRef)
	s.finishOrdered(ctx, draft, orderID)

	return &ConfirmResult{Draft: draft, OrderID: orderID, SettlementRef: settlementRef}, nil
}

// answerReplayedReturn handles a return URL whose recovery record is gone.
// If the draft behind the settlement already has an order, answer with it
// instead of an error, so double-clicking the return link is harmless.
func (s *CheckoutService) answerReplayedReturn(ctx context.Context, settlementRef string) (*ConfirmResult, error) {
	draft, err := s.repo.GetBySettlementRef(ctx, settlementRef)
	if err != nil {
		return nil, apperrors.Gone("settlement already processed or expired")
	}
	if draft.Status == domain.StatusOrdered && draft.OrderID != "" {
		return &ConfirmResult{Draft: draft, OrderID: draft.OrderID, SettlementRef: settlementRef}, nil
	}
	if draft.Status == domain.StatusUnreconciled {
		return nil, apperrors.SettlementUnreconciled(settlementRef, fmt.Errorf("draft %s awaiting reconciliation", draft.ID))
	}
	return nil, apperrors.Gone("settlement already processed or expired")
}

// markUnreconciled records that money was taken but no order exists. This is
// the one failure that must never surface as a generic error: support needs
// the settlement reference to reconcile by hand.
func (s *CheckoutService) markUnreconciled(ctx context.Context, draft *domain.CheckoutDraft, settlementRef string, cause error) error {
	draft.Status = domain.StatusUnreconciled
	draft.FailureReason = cause.Error()

	if err := s.repo.Update(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist unreconciled draft",
			slog.String("draft_id", draft.ID),
			slog.String("settlement_ref", settlementRef),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishCheckoutUnreconciled(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.unreconciled event",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.ErrorContext(ctx, "settlement unreconciled: payment succeeded, order commit failed",
		slog.String("draft_id", draft.ID),
		slog.String("settlement_ref", settlementRef),
		slog.String("cause", cause.Error()),
	)

	return apperrors.SettlementUnreconciled(settlementRef, cause)
}

// commitOrder sends the draft to the commerce backend. The draft ID acts as
// the idempotency key, so at most one order can exist per draft.
func (s *CheckoutService) commitOrder(ctx context.Context, draft *domain.CheckoutDraft, setPaid bool, transactionID string) (string, error) {
	ctx, cancel := s.withTimeout(ctx, s.timeouts.CommitTimeout)
	defer cancel()

	summary := pricing.Summarize(draft)

	req := client.OrderRequest{
		DraftID:         draft.ID,
		ShopperID:       draft.ShopperID,
		Items:           draft.Items,
		Currency:        draft.Currency,
		ShippingAddress: *draft.ShippingAddress,
		BillingAddress:  *draft.BillingAddress,
		ShippingMethod:  *draft.ShippingMethod,
		PaymentMethod:   draft.PaymentMethod,
		OrderNotes:      draft.OrderNotes,
		Subtotal:        summary.Subtotal,
		ShippingCost:    summary.Shipping,
		Discount:        summary.Discount,
		Total:           summary.Total,
		SetPaid:         setPaid,
		TransactionID:   transactionID,
	}
	if draft.AppliedCoupon != nil {
		req.CouponCode = draft.AppliedCoupon.Code
	}

	return s.commerce.CreateOrder(ctx, req)
}

// finishOrdered marks the draft ordered, clears the cart and publishes the
// completion event. Only the repo update is load bearing; cart clear and
// event publish failures are logged.
func (s *CheckoutService) finishOrdered(ctx context.Context, draft *domain.CheckoutDraft, orderID string) {
	draft.Status = domain.StatusOrdered
	draft.OrderID = orderID

	if err := s.repo.Update(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist ordered draft",
			slog.String("draft_id", draft.ID),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.cart.Clear(ctx, draft.ShopperID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after order",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishCheckoutCompleted(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout.completed event",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("draft_id", draft.ID),
		slog.String("order_id", orderID),
		slog.String("payment_method", draft.PaymentMethod),
	)
}

// ExpireStaleDrafts marks active drafts past their expiry. Run periodically
// by the background sweeper.
func (s *CheckoutService) ExpireStaleDrafts(ctx context.Context) (int, error) {
	drafts, err := s.repo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list expired drafts: %w", err)
	}

	expired := 0
	for i := range drafts {
		draft := &drafts[i]
		draft.Status = domain.StatusExpired
		draft.FailureReason = "checkout draft expired"
		if err := s.repo.Update(ctx, draft); err != nil {
			s.logger.ErrorContext(ctx, "failed to expire draft",
				slog.String("draft_id", draft.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.producer.PublishCheckoutFailed(ctx, draft); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish checkout.failed event",
				slog.String("draft_id", draft.ID),
				slog.String("error", err.Error()),
			)
		}
		expired++
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "expired stale checkout drafts", slog.Int("count", expired))
	}

	return expired, nil
}

func (s *CheckoutService) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

func recoveryRecord(draft *domain.CheckoutDraft, ref string) recovery.Record {
	return recovery.Record{
		DraftID:     draft.ID,
		ShopperID:   draft.ShopperID,
		IntentRef:   ref,
		Amount:      draft.TotalAmount(),
		Currency:    draft.Currency,
		PersistedAt: time.Now().UTC(),
	}
}

func blockedError(out domain.ValidationOutcome) error {
	msgs := make([]string, len(out.Violations))
	fields := make(map[string]string, len(out.Violations))
	for i, v := range out.Violations {
		msgs[i] = v.Message
		if v.ProductID != "" {
			fields[v.ProductID] = v.Message
		}
	}
	if len(fields) == 0 {
		return apperrors.InvalidInput(strings.Join(msgs, "; "))
	}
	return apperrors.InvalidInputFields(strings.Join(msgs, "; "), fields)
}

func validateAddress(addr *domain.Address) error {
	if addr == nil {
		return apperrors.InvalidInput("address is required")
	}
	if addr.FullName == "" {
		return apperrors.InvalidInput("full_name is required")
	}
	if addr.AddressLine == "" {
		return apperrors.InvalidInput("address_line is required")
	}
	if addr.City == "" {
		return apperrors.InvalidInput("city is required")
	}
	if addr.PostalCode == "" {
		return apperrors.InvalidInput("postal_code is required")
	}
	if addr.Country == "" {
		return apperrors.InvalidInput("country is required")
	}
	return nil
}
