package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hazelmarket/checkout/internal/domain"
	"github.com/hazelmarket/checkout/pkg/httpclient"
)

// RateClient quotes shipping methods from the rates service. Satisfies
// pricing.RateResolver.
type RateClient struct {
	doer    HTTPDoer
	baseURL string
}

func NewRateClient(doer HTTPDoer, baseURL string) *RateClient {
	return &RateClient{doer: doer, baseURL: baseURL}
}

func (c *RateClient) QuoteRates(ctx context.Context, address domain.Address, items []domain.LineItem) ([]domain.ShippingMethod, error) {
	type quoteItem struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		UnitPrice int64  `json:"unit_price"`
	}
	type quoteRequest struct {
		Country    string      `json:"country"`
		PostalCode string      `json:"postal_code"`
		City       string      `json:"city"`
		Items      []quoteItem `json:"items"`
	}
	type quotedRate struct {
		RateID   string `json:"rate_id"`
		MethodID string `json:"method_id"`
		Label    string `json:"label"`
		Cost     int64  `json:"cost"`
	}
	type quoteResponse struct {
		Rates []quotedRate `json:"rates"`
	}

	req := quoteRequest{
		Country:    address.Country,
		PostalCode: address.PostalCode,
		City:       address.City,
		Items:      make([]quoteItem, len(items)),
	}
	for i, item := range items {
		req.Items[i] = quoteItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rate quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/shipping/quotes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rate quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call rates service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "rates")
	}

	var quoteResp quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("decode rate quote response: %w", err)
	}

	methods := make([]domain.ShippingMethod, len(quoteResp.Rates))
	for i, rate := range quoteResp.Rates {
		methods[i] = domain.ShippingMethod{ID: rate.RateID, MethodID: rate.MethodID, Label: rate.Label, Cost: rate.Cost}
	}
	return methods, nil
}
