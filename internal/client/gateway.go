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

// GatewayClient opens payment intents with the payment gateway. Gateway
// settled methods charge the shopper before the order exists, so the intent
// reference is the only durable link between money taken and order created.
type GatewayClient struct {
	doer    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

func NewGatewayClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *GatewayClient {
	return &GatewayClient{doer: doer, baseURL: baseURL, logger: logger}
}

// OpenIntent registers an intent to charge for the draft's total. The
// returned client secret goes to the shopper's browser; the reference ID is
// persisted for recovery. Buyer contact details ride along so the gateway can
// attach them to its own receipt and risk checks.
func (c *GatewayClient) OpenIntent(ctx context.Context, draftID string, amount int64, currency string, buyer *domain.Address) (*domain.SettlementIntent, error) {
	type intentRequest struct {
		Amount     int64  `json:"amount"`
		Currency   string `json:"currency"`
		Reference  string `json:"reference"`
		BuyerName  string `json:"buyer_name,omitempty"`
		BuyerPhone string `json:"buyer_phone,omitempty"`
	}
	type intentResponse struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}

	req := intentRequest{Amount: amount, Currency: currency, Reference: draftID}
	if buyer != nil {
		req.BuyerName = buyer.FullName
		req.BuyerPhone = buyer.Phone
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payments/intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "payment")
	}

	var intentResp intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intentResp); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}

	c.logger.InfoContext(ctx, "payment intent opened",
		slog.String("draft_id", draftID),
		slog.String("intent_id", intentResp.IntentID),
		slog.Int64("amount", amount),
	)

	return &domain.SettlementIntent{
		ReferenceID:      intentResp.IntentID,
		ClientSecret:     intentResp.ClientSecret,
		AmountMinorUnits: amount,
		Currency:         currency,
		Status:           intentResp.Status,
	}, nil
}

// IntentStatus fetches the gateway's view of an intent. Used when resuming a
// redirect flow to confirm the charge actually went through.
func (c *GatewayClient) IntentStatus(ctx context.Context, intentID string) (string, error) {
	type statusResponse struct {
		Status string `json:"status"`
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/payments/intents/"+intentID, nil)
	if err != nil {
		return "", fmt.Errorf("create intent status request: %w", err)
	}

	resp, err := c.doer.Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", httpclient.ParseResponseError(resp, "payment")
	}

	var statusResp statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return "", fmt.Errorf("decode intent status response: %w", err)
	}
	return statusResp.Status, nil
}
