package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazelmarket/checkout/internal/domain"
	apperrors "github.com/hazelmarket/checkout/pkg/errors"
	"github.com/hazelmarket/checkout/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDoer() HTTPDoer {
	return httpclient.New(httpclient.Config{MaxRetries: 0})
}

func TestCartClient_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/carts/shopper-001", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"product_id": "prod-1", "name": "Walnut Board", "quantity": 2, "unit_price": 15000},
			},
			"subtotal": 30000,
			"currency": "EUR",
		})
	}))
	defer srv.Close()

	snapshot, err := NewCartClient(testDoer(), srv.URL, testLogger()).Snapshot(context.Background(), "shopper-001")

	require.NoError(t, err)
	assert.Equal(t, int64(30000), snapshot.Subtotal)
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, "Walnut Board", snapshot.Items[0].Name)
}

func TestCartClient_SnapshotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewCartClient(testDoer(), srv.URL, testLogger()).Snapshot(context.Background(), "shopper-001")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestCatalogClient_RestrictedProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Country    string   `json:"country"`
			ProductIDs []string `json:"product_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "NL", req.Country)
		json.NewEncoder(w).Encode(map[string]any{"restricted": []string{"prod-2"}})
	}))
	defer srv.Close()

	restricted, err := NewCatalogClient(testDoer(), srv.URL).
		RestrictedProducts(context.Background(), "NL", []string{"prod-1", "prod-2"})

	require.NoError(t, err)
	assert.Equal(t, []string{"prod-2"}, restricted)
}

func TestInventoryClient_StockLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"levels": []map[string]any{
				{"product_id": "prod-1", "in_stock": true, "available": 3},
			},
		})
	}))
	defer srv.Close()

	levels, err := NewInventoryClient(testDoer(), srv.URL).
		StockLevels(context.Background(), []string{"prod-1"})

	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.True(t, levels[0].InStock)
	assert.Equal(t, 3, levels[0].Available)
}

func TestRateClient_QuoteRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/shipping/quotes", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"rates": []map[string]any{
				{"rate_id": "rate-1", "method_id": "flat_rate", "label": "Standard", "cost": 5000},
			},
		})
	}))
	defer srv.Close()

	methods, err := NewRateClient(testDoer(), srv.URL).QuoteRates(
		context.Background(),
		domain.Address{Country: "NL", PostalCode: "3011", City: "Rotterdam"},
		[]domain.LineItem{{ProductID: "prod-1", Quantity: 2, UnitPrice: 15000}},
	)

	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, domain.ShippingMethod{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000}, methods[0])
}

func TestGatewayClient_OpenIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
			Reference string `json:"reference"`
			BuyerName string `json:"buyer_name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(41000), req.Amount)
		assert.Equal(t, "Jamie Doe", req.BuyerName)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"intent_id": "pi_123", "client_secret": "pi_123_secret", "status": "requires_action",
		})
	}))
	defer srv.Close()

	intent, err := NewGatewayClient(testDoer(), srv.URL, testLogger()).
		OpenIntent(context.Background(), "draft-001", 41000, "EUR", &domain.Address{FullName: "Jamie Doe", Phone: "+3110000000"})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ReferenceID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
}

func TestGatewayClient_OpenIntentDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"error": "card declined"})
	}))
	defer srv.Close()

	_, err := NewGatewayClient(testDoer(), srv.URL, testLogger()).
		OpenIntent(context.Background(), "draft-001", 41000, "EUR", nil)

	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
}

func TestCommerceClient_LookupCoupon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/coupons/TEN" {
			json.NewEncoder(w).Encode(map[string]any{"code": "TEN", "discount_type": "percent", "amount": 10})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCommerceClient(testDoer(), srv.URL, testLogger())

	coupon, err := c.LookupCoupon(context.Background(), "TEN")
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, domain.DiscountPercent, coupon.DiscountType)

	coupon, err = c.LookupCoupon(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, coupon)
}

func TestCommerceClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "draft-001", r.Header.Get("Idempotency-Key"))
		var req struct {
			SetPaid       bool   `json:"set_paid"`
			TransactionID string `json:"transaction_id"`
			Total         int64  `json:"total"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.SetPaid)
		assert.Equal(t, "pi_123", req.TransactionID)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"order_id": "order-9001"})
	}))
	defer srv.Close()

	orderID, err := NewCommerceClient(testDoer(), srv.URL, testLogger()).CreateOrder(context.Background(), OrderRequest{
		DraftID:       "draft-001",
		ShopperID:     "shopper-001",
		Currency:      "EUR",
		Total:         41000,
		SetPaid:       true,
		TransactionID: "pi_123",
	})

	require.NoError(t, err)
	assert.Equal(t, "order-9001", orderID)
}
