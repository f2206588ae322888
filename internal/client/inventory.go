package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hazelmarket/checkout/internal/gate"
	"github.com/hazelmarket/checkout/pkg/httpclient"
)

// InventoryClient reads live availability from the inventory service.
// Satisfies gate.StockResolver.
type InventoryClient struct {
	doer    HTTPDoer
	baseURL string
}

func NewInventoryClient(doer HTTPDoer, baseURL string) *InventoryClient {
	return &InventoryClient{doer: doer, baseURL: baseURL}
}

func (c *InventoryClient) StockLevels(ctx context.Context, productIDs []string) ([]gate.StockLevel, error) {
	type stockRequest struct {
		ProductIDs []string `json:"product_ids"`
	}
	type stockItem struct {
		ProductID string `json:"product_id"`
		InStock   bool   `json:"in_stock"`
		Available int    `json:"available"`
	}
	type stockResponse struct {
		Levels []stockItem `json:"levels"`
	}

	body, err := json.Marshal(stockRequest{ProductIDs: productIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal stock request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/inventory/levels", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create stock request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call inventory service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "inventory")
	}

	var stockResp stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&stockResp); err != nil {
		return nil, fmt.Errorf("decode stock response: %w", err)
	}

	levels := make([]gate.StockLevel, len(stockResp.Levels))
	for i, lvl := range stockResp.Levels {
		levels[i] = gate.StockLevel{ProductID: lvl.ProductID, InStock: lvl.InStock, Available: lvl.Available}
	}
	return levels, nil
}
