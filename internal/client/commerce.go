package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hazelmarket/checkout/internal/domain"
	"github.com/hazelmarket/checkout/pkg/httpclient"
)

// OrderRequest is the payload for committing a draft as an order on the
// commerce backend.
type OrderRequest struct {
	DraftID         string
	ShopperID       string
	Items           []domain.LineItem
	Currency        string
	ShippingAddress domain.Address
	BillingAddress  domain.Address
	ShippingMethod  domain.ShippingMethod
	PaymentMethod   string
	CouponCode      string
	OrderNotes      string
	Subtotal        int64
	ShippingCost    int64
	Discount        int64
	Total           int64
	SetPaid         bool
	TransactionID   string
}

// CommerceClient talks to the commerce backend that owns orders and coupons.
type CommerceClient struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

func NewCommerceClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *CommerceClient {
	return &CommerceClient{doer: doer, baseURL: baseURL, logger: logger}
}

// LookupCoupon resolves a coupon code. A nil coupon with nil error means the
// code does not exist.
func (c *CommerceClient) LookupCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	type couponResponse struct {
		Code         string `json:"code"`
		DiscountType string `json:"discount_type"`
		Amount       int64  `json:"amount"`
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/coupons/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("create coupon request: %w", err)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call commerce backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "commerce")
	}

	var couponResp couponResponse
	if err := json.NewDecoder(resp.Body).Decode(&couponResp); err != nil {
		return nil, fmt.Errorf("decode coupon response: %w", err)
	}
	return &domain.Coupon{Code: couponResp.Code, DiscountType: couponResp.DiscountType, Amount: couponResp.Amount}, nil
}

// CreateOrder commits the draft as an order. The draft ID doubles as the
// idempotency key, so a retried commit for the same draft returns the
// already created order instead of a duplicate.
func (c *CommerceClient) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	type orderItem struct {
		ProductID   string `json:"product_id"`
		VariationID string `json:"variation_id,omitempty"`
		Name        string `json:"name"`
		Quantity    int    `json:"quantity"`
		UnitPrice   int64  `json:"unit_price"`
	}
	type createOrderRequest struct {
		ShopperID       string         `json:"shopper_id"`
		Items           []orderItem    `json:"items"`
		Currency        string         `json:"currency"`
		ShippingAddress domain.Address `json:"shipping_address"`
		BillingAddress  domain.Address `json:"billing_address"`
		ShippingMethod  string         `json:"shipping_method"`
		ShippingLabel   string         `json:"shipping_label"`
		PaymentMethod   string         `json:"payment_method"`
		CouponCode      string         `json:"coupon_code,omitempty"`
		OrderNotes      string         `json:"order_notes,omitempty"`
		Subtotal        int64          `json:"subtotal"`
		ShippingCost    int64          `json:"shipping_cost"`
		Discount        int64          `json:"discount"`
		Total           int64          `json:"total"`
		SetPaid         bool           `json:"set_paid"`
		TransactionID   string         `json:"transaction_id,omitempty"`
	}
	type createOrderResponse struct {
		OrderID string `json:"order_id"`
	}

	payload := createOrderRequest{
		ShopperID:       req.ShopperID,
		Items:           make([]orderItem, len(req.Items)),
		Currency:        req.Currency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingMethod:  req.ShippingMethod.MethodID,
		ShippingLabel:   req.ShippingMethod.Label,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		OrderNotes:      req.OrderNotes,
		Subtotal:        req.Subtotal,
		ShippingCost:    req.ShippingCost,
		Discount:        req.Discount,
		Total:           req.Total,
		SetPaid:         req.SetPaid,
		TransactionID:   req.TransactionID,
	}
	for i, item := range req.Items {
		payload.Items[i] = orderItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal create order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.DraftID)

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("call commerce backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", httpclient.ParseResponseError(resp, "commerce")
	}

	var orderResp createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return "", fmt.Errorf("decode create order response: %w", err)
	}

	c.logger.InfoContext(ctx, "order created",
		slog.String("draft_id", req.DraftID),
		slog.String("order_id", orderResp.OrderID),
		slog.Bool("set_paid", req.SetPaid),
	)

	return orderResp.OrderID, nil
}
