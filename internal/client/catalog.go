package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hazelmarket/checkout/pkg/httpclient"
)

// CatalogClient answers shipping restriction queries against the catalog
// service. Satisfies gate.RestrictionResolver.
type CatalogClient struct {
	doer    HTTPDoer
	baseURL string
}

func NewCatalogClient(doer HTTPDoer, baseURL string) *CatalogClient {
	return &CatalogClient{doer: doer, baseURL: baseURL}
}

func (c *CatalogClient) RestrictedProducts(ctx context.Context, country string, productIDs []string) ([]string, error) {
	type restrictionRequest struct {
		Country    string   `json:"country"`
		ProductIDs []string `json:"product_ids"`
	}
	type restrictionResponse struct {
		Restricted []string `json:"restricted"`
	}

	body, err := json.Marshal(restrictionRequest{Country: country, ProductIDs: productIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal restriction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/catalog/shipping-restrictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create restriction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var restrictionResp restrictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&restrictionResp); err != nil {
		return nil, fmt.Errorf("decode restriction response: %w", err)
	}
	return restrictionResp.Restricted, nil
}
