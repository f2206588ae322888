package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazelmarket/checkout/internal/domain"
	pkgkafka "github.com/hazelmarket/checkout/pkg/kafka"
)

// Kafka topic constants for checkout domain events.
const (
	TopicCheckoutStarted      = "hazelmarket.checkout.started"
	TopicCheckoutCompleted    = "hazelmarket.checkout.completed"
	TopicCheckoutFailed       = "hazelmarket.checkout.failed"
	TopicCheckoutUnreconciled = "hazelmarket.checkout.unreconciled"
)

// Aggregate type constant.
const AggregateTypeCheckout = "checkout_draft"

// Source identifier for events originating from this service.
const SourceCheckoutService = "checkout-service"

// CheckoutStartedData is the payload for a checkout.started event.
type CheckoutStartedData struct {
	ID             string            `json:"id"`
	ShopperID      string            `json:"shopper_id"`
	Items          []domain.LineItem `json:"items"`
	SubtotalAmount int64             `json:"subtotal_amount"`
	Currency       string            `json:"currency"`
}

// CheckoutCompletedData is the payload for a checkout.completed event.
type CheckoutCompletedData struct {
	ID            string `json:"id"`
	ShopperID     string `json:"shopper_id"`
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	SettlementRef string `json:"settlement_ref,omitempty"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency"`
}

// CheckoutFailedData is the payload for a checkout.failed event.
type CheckoutFailedData struct {
	ID            string `json:"id"`
	ShopperID     string `json:"shopper_id"`
	FailureReason string `json:"failure_reason"`
}

// CheckoutUnreconciledData is the payload for a checkout.unreconciled event.
// A payment went through but order creation failed, so support has to
// reconcile by hand. The settlement reference is the handle they need.
type CheckoutUnreconciledData struct {
	ID            string `json:"id"`
	ShopperID     string `json:"shopper_id"`
	SettlementRef string `json:"settlement_ref"`
	TotalAmount   int64  `json:"total_amount"`
	Currency      string `json:"currency"`
}

// Producer publishes checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCheckoutStarted publishes a checkout.started event.
func (p *Producer) PublishCheckoutStarted(ctx context.Context, draft *domain.CheckoutDraft) error {
	data := CheckoutStartedData{
		ID:             draft.ID,
		ShopperID:      draft.ShopperID,
		Items:          draft.Items,
		SubtotalAmount: draft.CalculateSubtotal(),
		Currency:       draft.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutStarted, draft.ID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create checkout.started event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutStarted, event); err != nil {
		return fmt.Errorf("publish checkout.started event: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.started event",
		slog.String("draft_id", draft.ID),
		slog.String("shopper_id", draft.ShopperID),
	)

	return nil
}

// PublishCheckoutCompleted publishes a checkout.completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, draft *domain.CheckoutDraft) error {
	data := CheckoutCompletedData{
		ID:            draft.ID,
		ShopperID:     draft.ShopperID,
		OrderID:       draft.OrderID,
		PaymentMethod: draft.PaymentMethod,
		SettlementRef: draft.Settlement.Ref,
		TotalAmount:   draft.TotalAmount(),
		Currency:      draft.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutCompleted, draft.ID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create checkout.completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutCompleted, event); err != nil {
		return fmt.Errorf("publish checkout.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.completed event",
		slog.String("draft_id", draft.ID),
		slog.String("order_id", draft.OrderID),
	)

	return nil
}

// PublishCheckoutFailed publishes a checkout.failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, draft *domain.CheckoutDraft) error {
	data := CheckoutFailedData{
		ID:            draft.ID,
		ShopperID:     draft.ShopperID,
		FailureReason: draft.FailureReason,
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutFailed, draft.ID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create checkout.failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutFailed, event); err != nil {
		return fmt.Errorf("publish checkout.failed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.failed event",
		slog.String("draft_id", draft.ID),
		slog.String("reason", draft.FailureReason),
	)

	return nil
}

// PublishCheckoutUnreconciled publishes a checkout.unreconciled event.
func (p *Producer) PublishCheckoutUnreconciled(ctx context.Context, draft *domain.CheckoutDraft) error {
	data := CheckoutUnreconciledData{
		ID:            draft.ID,
		ShopperID:     draft.ShopperID,
		SettlementRef: draft.Settlement.Ref,
		TotalAmount:   draft.TotalAmount(),
		Currency:      draft.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutUnreconciled, draft.ID, AggregateTypeCheckout, SourceCheckoutService, data)
	if err != nil {
		return fmt.Errorf("create checkout.unreconciled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutUnreconciled, event); err != nil {
		return fmt.Errorf("publish checkout.unreconciled event: %w", err)
	}

	p.logger.WarnContext(ctx, "published checkout.unreconciled event",
		slog.String("draft_id", draft.ID),
		slog.String("settlement_ref", draft.Settlement.Ref),
	)

	return nil
}
