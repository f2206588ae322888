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

// CartClient reads and mutates the shopper's cart in the cart service. The
// cart stays authoritative until an order is committed; checkout never
// destroys it on failure.
type CartClient struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

func NewCartClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *CartClient {
	return &CartClient{doer: doer, baseURL: baseURL, logger: logger}
}

// Snapshot fetches the shopper's current cart contents.
func (c *CartClient) Snapshot(ctx context.Context, shopperID string) (*domain.CartSnapshot, error) {
	type cartItem struct {
		ProductID   string `json:"product_id"`
		VariationID string `json:"variation_id,omitempty"`
		Name        string `json:"name"`
		Quantity    int    `json:"quantity"`
		UnitPrice   int64  `json:"unit_price"`
		TaxClass    string `json:"tax_class,omitempty"`
	}
	type cartResponse struct {
		Items    []cartItem `json:"items"`
		Subtotal int64      `json:"subtotal"`
		Currency string     `json:"currency"`
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/carts/"+shopperID, nil)
	if err != nil {
		return nil, fmt.Errorf("create cart request: %w", err)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call cart service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "cart")
	}

	var cartResp cartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cartResp); err != nil {
		return nil, fmt.Errorf("decode cart response: %w", err)
	}

	snapshot := &domain.CartSnapshot{
		Subtotal: cartResp.Subtotal,
		Currency: cartResp.Currency,
		Items:    make([]domain.LineItem, len(cartResp.Items)),
	}
	for i, item := range cartResp.Items {
		snapshot.Items[i] = domain.LineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxClass:    item.TaxClass,
		}
	}
	return snapshot, nil
}

// SetShippingAddress mirrors the draft's shipping destination onto the cart
// so tax and rate lookups elsewhere see the same destination.
func (c *CartClient) SetShippingAddress(ctx context.Context, shopperID string, addr domain.Address) error {
	body, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/carts/"+shopperID+"/shipping-address", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create cart address request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call cart service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "cart")
	}
	return nil
}

// Clear empties the cart after an order has been committed.
func (c *CartClient) Clear(ctx context.Context, shopperID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/carts/"+shopperID, nil)
	if err != nil {
		return fmt.Errorf("create cart clear request: %w", err)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call cart service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "cart")
	}

	c.logger.InfoContext(ctx, "cart cleared", slog.String("shopper_id", shopperID))
	return nil
}
